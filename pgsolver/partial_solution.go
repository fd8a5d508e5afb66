package pgsolver

// assignmentKind distinguishes a firm version pick from a narrowed term.
type assignmentKind uint8

const (
	kindDecision assignmentKind = iota
	kindDerivation
)

// assignment is one entry in the partial solution's ordered log.
type assignment struct {
	kind  assignmentKind
	level int
	pkg   PackageID

	// decision: the chosen version.
	version Version

	// derivation: the narrowed term and the incompatibility that forced it.
	term  Term
	cause incompatibilityID
}

// partialSolution is the ordered assignment log the PubGrub loop builds up
// and backtracks over. It also maintains, per package, the running
// intersection of all positive terms (the current candidate range) and
// whether a decision has been made, so unit propagation and decision-making
// don't need to rescan the whole log on every step.
type partialSolution struct {
	log   []assignment
	level int

	// derived per-package running state, rebuilt incrementally. positive
	// holds the single combined "acceptable" range per package: the
	// intersection of every positive term, with negative terms folded in
	// by exclusion (see excludeRange).
	positive map[PackageID]VersionRange
	decided  map[PackageID]Version

	// required is the set of packages that have received at least one
	// positive derivation, the only packages eligible for a decision. A
	// package constrained purely negatively is not selected at all.
	required map[PackageID]struct{}

	// changed is the set of packages with a positive derived term but no
	// decision yet, used to prioritize propagation.
	changed map[PackageID]struct{}
}

func newPartialSolution() *partialSolution {
	return &partialSolution{
		positive: make(map[PackageID]VersionRange),
		decided:  make(map[PackageID]Version),
		required: make(map[PackageID]struct{}),
		changed:  make(map[PackageID]struct{}),
	}
}

// relevantRange returns the current acceptable range for pkg: the
// intersection of every positive term and the complement-application of
// every negative term seen so far, approximated here (per PubGrub) by
// folding negative terms in as an intersection against Any with that
// sub-range excluded. Because VersionRange cannot represent an arbitrary
// exclusion directly, negative terms are applied at derivation time by
// computing the complement against the *current* positive range, which is
// always a finite interval by the time a negative term needs folding in
// practice for this package's closed range algebra.
func (ps *partialSolution) relevantRange(pkg PackageID) (VersionRange, bool) {
	r, ok := ps.positive[pkg]
	return r, ok
}

// seedRoot records the synthetic root decision at decision level 0, so
// that the root assignment and the root-dependency derivations that follow
// it survive every backtrack: conflict resolution's merge chain can then
// terminate in the empty incompatibility instead of popping the root.
func (ps *partialSolution) seedRoot(v Version) {
	ps.log = append(ps.log, assignment{
		kind:    kindDecision,
		level:   0,
		pkg:     RootID,
		version: v,
	})
	ps.decided[RootID] = v
	ps.positive[RootID] = Exact(v)
}

// decision records version v for pkg as a firm decision at the current
// (about to be incremented) decision level.
func (ps *partialSolution) decide(pkg PackageID, v Version) {
	ps.level++
	ps.log = append(ps.log, assignment{
		kind:    kindDecision,
		level:   ps.level,
		pkg:     pkg,
		version: v,
	})
	ps.decided[pkg] = v
	ps.positive[pkg] = Exact(v)
	delete(ps.changed, pkg)
}

// derive records a new narrowed term for pkg, caused by ic, at the current
// decision level.
func (ps *partialSolution) derive(pkg PackageID, t Term, ic incompatibilityID) {
	ps.log = append(ps.log, assignment{
		kind:  kindDerivation,
		level: ps.level,
		pkg:   pkg,
		term:  t,
		cause: ic,
	})

	if t.Positive {
		cur, ok := ps.positive[pkg]
		if !ok {
			cur = Any()
		}
		ps.positive[pkg] = cur.Intersect(t.Range)
		ps.required[pkg] = struct{}{}
		if _, has := ps.decided[pkg]; !has {
			ps.changed[pkg] = struct{}{}
		}
	} else {
		// Fold the negative term in by excluding it from the running
		// positive range. Because the running range is always a single
		// finite-or-unbounded interval, and Elm constraints are always
		// single intervals too, excluding one interval from another only
		// ever needs to shrink one edge in the cases the solver actually
		// produces (dependency ranges are contiguous), so intersect with
		// whichever side of t.Range remains outside the negated interval
		// that still overlaps the current range.
		cur, ok := ps.positive[pkg]
		if !ok {
			cur = Any()
		}
		ps.positive[pkg] = excludeRange(cur, t.Range)
	}
}

// excludeRange narrows cur to the portion outside excl, preferring to keep
// the side that still overlaps cur when excl splits cur into two pieces
// (which cannot happen for the contiguous constraints this solver deals
// in; if it did, the lower piece is kept, matching "newest-first" bias
// being handled separately at decision time, not here).
func excludeRange(cur, excl VersionRange) VersionRange {
	if cur.IsEmpty || excl.IsEmpty {
		return cur
	}
	overlap := cur.Intersect(excl)
	if overlap.IsEmpty {
		return cur
	}
	// excl fully covers cur: nothing left.
	if rangeContainsRange(excl, cur) {
		return None()
	}
	// excl eats the bottom of cur: keep the portion above excl's upper
	// bound.
	if boundsPastLower(cur.Lower, excl.Lower) {
		return VersionRange{Lower: flipBound(excl.Upper), Upper: cur.Upper}
	}
	// Otherwise excl eats the top: shrink cur's upper edge down to excl's
	// lower bound.
	return VersionRange{Lower: cur.Lower, Upper: flipBound(excl.Lower)}
}

// boundsPastLower reports whether a's lower bound is at or past (i.e.
// greater than or equal to, considering inclusivity) b's lower bound.
func boundsPastLower(a, b VersionBound) bool {
	if b.Unbounded {
		return true
	}
	if a.Unbounded {
		return false
	}
	if a.V.Equal(b.V) {
		return !a.Inclusive || b.Inclusive
	}
	return b.V.Less(a.V)
}

// flipBound turns one bound of an excluded range into the opposite-facing
// bound of the surviving range: an inclusive exclusion bound becomes an
// exclusive bound for the kept portion, and vice versa.
func flipBound(b VersionBound) VersionBound {
	if b.Unbounded {
		return b
	}
	return VersionBound{V: b.V, Inclusive: !b.Inclusive}
}

// backtrackTo pops the log back to the given decision level (exclusive):
// every assignment at a level greater than target is removed, and
// per-package state is recomputed from what remains.
func (ps *partialSolution) backtrackTo(target int) {
	i := len(ps.log)
	for i > 0 && ps.log[i-1].level > target {
		i--
	}
	ps.log = ps.log[:i]
	ps.level = target

	ps.positive = make(map[PackageID]VersionRange)
	ps.decided = make(map[PackageID]Version)
	ps.required = make(map[PackageID]struct{})
	ps.changed = make(map[PackageID]struct{})

	for _, a := range ps.log {
		if a.kind == kindDecision {
			ps.decided[a.pkg] = a.version
			ps.positive[a.pkg] = Exact(a.version)
			continue
		}
		if a.term.Positive {
			cur, ok := ps.positive[a.pkg]
			if !ok {
				cur = Any()
			}
			ps.positive[a.pkg] = cur.Intersect(a.term.Range)
			ps.required[a.pkg] = struct{}{}
			if _, has := ps.decided[a.pkg]; !has {
				ps.changed[a.pkg] = struct{}{}
			}
		} else {
			cur, ok := ps.positive[a.pkg]
			if !ok {
				cur = Any()
			}
			ps.positive[a.pkg] = excludeRange(cur, a.term.Range)
		}
	}
}

// applyAssignment folds one assignment for a package into its running
// acceptable range.
func applyAssignment(running VersionRange, a assignment) VersionRange {
	if a.kind == kindDecision {
		return Exact(a.version)
	}
	if a.term.Positive {
		return running.Intersect(a.term.Range)
	}
	return excludeRange(running, a.term.Range)
}

// termSatisfier is the single assignment whose accumulation first makes a
// term of interest satisfied, found by replaying the log in order for just
// that term's package.
type termSatisfier struct {
	index      int  // position in ps.log
	level      int  // decision level of that assignment
	isDecision bool // vs. a derivation
	cause      incompatibilityID
}

// findSatisfier returns, for term t, the earliest log position at which the
// running accumulation for t.Pkg satisfies t. Used only during conflict
// resolution, which always calls this for terms already known to be
// satisfied by the full current partial solution.
func (ps *partialSolution) findSatisfier(t Term) termSatisfier {
	running := Any()
	for i, a := range ps.log {
		if a.pkg != t.Pkg {
			continue
		}
		running = applyAssignment(running, a)
		if t.satisfiedBy(running) {
			return termSatisfier{index: i, level: a.level, isDecision: a.kind == kindDecision, cause: a.cause}
		}
	}
	// Unreachable in a well-formed conflict: the caller only asks about
	// terms already verified satisfied by the whole log.
	last := ps.log[len(ps.log)-1]
	return termSatisfier{index: len(ps.log) - 1, level: last.level, isDecision: last.kind == kindDecision, cause: last.cause}
}

// findPreviousSatisfier locates, for a term whose satisfier sits at satIdx,
// the latest earlier assignment of the same package that the satisfier
// needed in order to complete the term's satisfaction. Reports false when
// the satisfier alone suffices.
func (ps *partialSolution) findPreviousSatisfier(t Term, satIdx int) (termSatisfier, bool) {
	sat := ps.log[satIdx]
	if t.satisfiedBy(applyAssignment(Any(), sat)) {
		return termSatisfier{}, false
	}
	running := Any()
	for i := 0; i < satIdx; i++ {
		a := ps.log[i]
		if a.pkg != t.Pkg {
			continue
		}
		running = applyAssignment(running, a)
		if t.satisfiedBy(applyAssignment(running, sat)) {
			return termSatisfier{index: i, level: a.level, isDecision: a.kind == kindDecision, cause: a.cause}, true
		}
	}
	return termSatisfier{}, false
}

// satisfierAssignment returns the log entry at idx.
func (ps *partialSolution) satisfierAssignment(idx int) assignment { return ps.log[idx] }

// hasDecision reports whether pkg already has a firm version choice.
func (ps *partialSolution) hasDecision(pkg PackageID) bool {
	_, ok := ps.decided[pkg]
	return ok
}

// decisionVersion returns the decided version for pkg, if any.
func (ps *partialSolution) decisionVersion(pkg PackageID) (Version, bool) {
	v, ok := ps.decided[pkg]
	return v, ok
}
