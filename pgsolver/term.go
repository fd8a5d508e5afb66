package pgsolver

// Term is one clause of an Incompatibility: an assertion, positive or
// negative, about the version selected for a package.
type Term struct {
	Pkg      PackageID
	Range    VersionRange
	Positive bool
}

func posTerm(pkg PackageID, r VersionRange) Term { return Term{Pkg: pkg, Range: r, Positive: true} }
func negTerm(pkg PackageID, r VersionRange) Term { return Term{Pkg: pkg, Range: r, Positive: false} }

// satisfiedBy reports whether the single assigned range sel (the
// intersection of all decisions/derivations so far for t.Pkg) satisfies t.
//
// A positive term is satisfied when sel is fully contained in t.Range. A
// negative term is satisfied when sel has no overlap with t.Range at all.
func (t Term) satisfiedBy(sel VersionRange) bool {
	if t.Positive {
		return rangeContainsRange(t.Range, sel)
	}
	return sel.Intersect(t.Range).IsEmpty
}

// contradictedBy reports whether sel can no longer possibly satisfy t.
func (t Term) contradictedBy(sel VersionRange) bool {
	if t.Positive {
		return sel.Intersect(t.Range).IsEmpty
	}
	return rangeContainsRange(t.Range, sel)
}

// negate returns the logical negation of t: same package and range,
// opposite polarity.
func (t Term) negate() Term {
	return Term{Pkg: t.Pkg, Range: t.Range, Positive: !t.Positive}
}

// String renders t the way the reporter does: "not " prefix for negative
// terms, then the range's own String (empty for Any).
func (t Term) String(name string) string {
	s := t.Range.String()
	if s == "" {
		s = "any version"
	}
	if t.Positive {
		return name + " " + s
	}
	return "not " + name + " " + s
}

// differenceInverse computes, for a satisfier's own term d and the working
// term t it partially satisfied, the inverse of the set difference
// set(d) \ set(t), the leftover constraint that must travel into a
// resolvent so it stays a valid consequence. This is the standard PubGrub
// "difference term" for partial satisfaction.
func differenceInverse(d, t Term) Term {
	switch {
	case !d.Positive && t.Positive:
		// (¬D) \ T = ¬(D ∪ T); its inverse asserts membership in D ∪ T.
		return posTerm(d.Pkg, unionRange(d.Range, t.Range))
	case d.Positive && t.Positive:
		return negTerm(d.Pkg, excludeRange(d.Range, t.Range))
	case !d.Positive && !t.Positive:
		return negTerm(d.Pkg, excludeRange(t.Range, d.Range))
	default: // d positive, t negative
		return negTerm(d.Pkg, d.Range.Intersect(t.Range))
	}
}

// rangeContainsRange reports whether every version in inner is also in
// outer (outer is a superset of inner). This is exactly intersection
// equalling inner.
func rangeContainsRange(outer, inner VersionRange) bool {
	if inner.IsEmpty {
		return true
	}
	return outer.Intersect(inner).equalRange(inner)
}

func (r VersionRange) equalRange(o VersionRange) bool {
	if r.IsEmpty != o.IsEmpty {
		return false
	}
	if r.IsEmpty {
		return true
	}
	return boundsEqual(r.Lower, o.Lower) && boundsEqual(r.Upper, o.Upper)
}

func boundsEqual(a, b VersionBound) bool {
	if a.Unbounded != b.Unbounded {
		return false
	}
	if a.Unbounded {
		return true
	}
	return a.V.Equal(b.V) && a.Inclusive == b.Inclusive
}
