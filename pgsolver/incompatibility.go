package pgsolver

import "strings"

// Reason classifies why an Incompatibility exists.
type Reason uint8

const (
	// ReasonRoot is the leaf incompatibility {not dep@range} seeded for
	// each of the root's declared dependencies: that dependency is
	// required within that range.
	ReasonRoot Reason = iota
	// ReasonDependency encodes "pkg@range depends on dep@range".
	ReasonDependency
	// ReasonNoVersions encodes "no acceptable version of pkg exists".
	ReasonNoVersions
	// ReasonDerived is produced by conflict resolution from two causes.
	ReasonDerived
)

// incompatibilityID indexes into the solver's append-only store.
type incompatibilityID int

// Incompatibility is a disjunction of negated Terms: at least one of the
// negations of Terms must hold, i.e. the conjunction of the Terms
// themselves cannot all be simultaneously satisfied.
type Incompatibility struct {
	id     incompatibilityID
	Terms  []Term
	Reason Reason
	// Causes holds the two antecedent incompatibilities when Reason is
	// ReasonDerived. Both are zero for leaf incompatibilities.
	Causes [2]incompatibilityID
}

// store is the append-only incompatibility arena. Indices are stable for
// the lifetime of a solve; nothing is ever removed, matching the DAG
// ownership model described for the solver (see package doc).
type store struct {
	all []*Incompatibility
}

func newStore() *store { return &store{} }

func (s *store) add(terms []Term, reason Reason, causes [2]incompatibilityID) *Incompatibility {
	ic := &Incompatibility{
		id:     incompatibilityID(len(s.all)),
		Terms:  terms,
		Reason: reason,
		Causes: causes,
	}
	s.all = append(s.all, ic)
	return ic
}

func (s *store) get(id incompatibilityID) *Incompatibility { return s.all[id] }

// isLeaf reports whether ic has no derived causes.
func (ic *Incompatibility) isLeaf() bool { return ic.Reason != ReasonDerived }

// termFor returns the term in ic about pkg, if any.
func (ic *Incompatibility) termFor(pkg PackageID) (Term, bool) {
	for _, t := range ic.Terms {
		if t.Pkg == pkg {
			return t, true
		}
	}
	return Term{}, false
}

// String renders ic as the conclusion clause of a reporter sentence.
func (ic *Incompatibility) String(names func(PackageID) string) string {
	switch {
	case len(ic.Terms) == 0:
		return "version solving failed"
	case len(ic.Terms) == 1:
		t := ic.Terms[0]
		if t.Positive {
			return t.String(names(t.Pkg)) + " is forbidden"
		}
		return t.negate().String(names(t.Pkg)) + " is required"
	case len(ic.Terms) == 2 && ic.Terms[0].Positive && !ic.Terms[1].Positive:
		return ic.Terms[0].String(names(ic.Terms[0].Pkg)) + " requires " + ic.Terms[1].negate().String(names(ic.Terms[1].Pkg))
	default:
		parts := make([]string, len(ic.Terms))
		for i, t := range ic.Terms {
			parts[i] = t.String(names(t.Pkg))
		}
		return strings.Join(parts, " and ") + " are incompatible"
	}
}
