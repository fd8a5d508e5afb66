// Package pgsolver implements a PubGrub-style conflict-driven dependency
// resolver: an append-only incompatibility store, a partial solution log,
// and unit propagation / decision / conflict-resolution over both, plus a
// derivation-graph walk that turns a failed solve into an explanation a
// human can read.
package pgsolver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Version is an Elm package version: a triple of non-negative integers.
// The zero value, 0.0.0, is a valid version.
type Version struct {
	Major, Minor, Patch int
}

// ParseVersion parses the canonical "M.N.P" form. Anything else is rejected.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, errors.Errorf("invalid version %q: want M.N.P", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || (len(p) > 1 && p[0] == '0') {
			return Version{}, errors.Errorf("invalid version %q: bad component %q", s, p)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than o,
// using lexicographic order on (major, minor, patch).
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

func (v Version) Less(o Version) bool    { return v.Compare(o) < 0 }
func (v Version) Equal(o Version) bool   { return v.Compare(o) == 0 }
func (v Version) LessEq(o Version) bool  { return v.Compare(o) <= 0 }
func (v Version) GreatEq(o Version) bool { return v.Compare(o) >= 0 }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// NextMinor returns the version that opens the next minor range: M.(N+1).0.
func (v Version) NextMinor() Version { return Version{v.Major, v.Minor + 1, 0} }

// NextMajor returns the version that opens the next major range: (M+1).0.0.
func (v Version) NextMajor() Version { return Version{v.Major + 1, 0, 0} }

// VersionBound is one edge of a VersionRange. When Unbounded is true, V and
// Inclusive are meaningless.
type VersionBound struct {
	V         Version
	Inclusive bool
	Unbounded bool
}

func lowerUnbounded() VersionBound { return VersionBound{Unbounded: true} }
func upperUnbounded() VersionBound { return VersionBound{Unbounded: true} }

// VersionRange is an interval of Versions, open or closed at each end, or
// explicitly empty.
type VersionRange struct {
	Lower, Upper VersionBound
	IsEmpty      bool
}

// Any matches every version.
func Any() VersionRange {
	return VersionRange{Lower: lowerUnbounded(), Upper: upperUnbounded()}
}

// None matches no version.
func None() VersionRange {
	return VersionRange{IsEmpty: true}
}

// Exact matches only v.
func Exact(v Version) VersionRange {
	return VersionRange{
		Lower: VersionBound{V: v, Inclusive: true},
		Upper: VersionBound{V: v, Inclusive: true},
	}
}

// UntilNextMinor returns [v, v.major.(v.minor+1).0): v and its later
// patches within the same minor version.
func UntilNextMinor(v Version) VersionRange {
	return VersionRange{
		Lower: VersionBound{V: v, Inclusive: true},
		Upper: VersionBound{V: v.NextMinor(), Inclusive: false},
	}
}

// UntilNextMajor returns [v, (v.major+1).0.0).
func UntilNextMajor(v Version) VersionRange {
	return VersionRange{
		Lower: VersionBound{V: v, Inclusive: true},
		Upper: VersionBound{V: v.NextMajor(), Inclusive: false},
	}
}

// Contains reports whether v satisfies r.
func (r VersionRange) Contains(v Version) bool {
	if r.IsEmpty {
		return false
	}
	if !r.Lower.Unbounded {
		if r.Lower.Inclusive {
			if v.Less(r.Lower.V) {
				return false
			}
		} else if v.LessEq(r.Lower.V) {
			return false
		}
	}
	if !r.Upper.Unbounded {
		if r.Upper.Inclusive {
			if r.Upper.V.Less(v) {
				return false
			}
		} else if r.Upper.V.LessEq(v) {
			return false
		}
	}
	return true
}

// Intersect computes the tighter of both bounds, marking the result empty
// when it is unsatisfiable. Intersect is commutative and idempotent.
func (r VersionRange) Intersect(o VersionRange) VersionRange {
	if r.IsEmpty || o.IsEmpty {
		return None()
	}

	lower := tighterLower(r.Lower, o.Lower)
	upper := tighterUpper(r.Upper, o.Upper)

	result := VersionRange{Lower: lower, Upper: upper}
	if !lower.Unbounded && !upper.Unbounded {
		switch {
		case lower.V.Less(upper.V):
			// fine
		case lower.V.Equal(upper.V):
			if !(lower.Inclusive && upper.Inclusive) {
				result.IsEmpty = true
			}
		default:
			result.IsEmpty = true
		}
	}
	return result
}

func tighterLower(a, b VersionBound) VersionBound {
	if a.Unbounded {
		return b
	}
	if b.Unbounded {
		return a
	}
	switch {
	case a.V.Less(b.V):
		return b
	case b.V.Less(a.V):
		return a
	default:
		// same version: the exclusive bound is tighter
		if !a.Inclusive {
			return a
		}
		return b
	}
}

// unionRange returns the smallest single interval covering both a and b.
// Exact only when a and b overlap or touch; conflict resolution only ever
// unions ranges a shared satisfier connected, so the interval form holds.
func unionRange(a, b VersionRange) VersionRange {
	if a.IsEmpty {
		return b
	}
	if b.IsEmpty {
		return a
	}
	lower := a.Lower
	if tighter := tighterLower(a.Lower, b.Lower); boundsEqual(tighter, a.Lower) {
		lower = b.Lower
	}
	upper := a.Upper
	if tighter := tighterUpper(a.Upper, b.Upper); boundsEqual(tighter, a.Upper) {
		upper = b.Upper
	}
	return VersionRange{Lower: lower, Upper: upper}
}

func tighterUpper(a, b VersionBound) VersionBound {
	if a.Unbounded {
		return b
	}
	if b.Unbounded {
		return a
	}
	switch {
	case a.V.Less(b.V):
		return a
	case b.V.Less(a.V):
		return b
	default:
		if !a.Inclusive {
			return a
		}
		return b
	}
}

// String renders r the way the reporter does: omitted for Any, bare version
// for an exact range, caret form for a from-v-to-next-major range, and
// ">=lo <hi" generically.
func (r VersionRange) String() string {
	if r.IsEmpty {
		return "<empty>"
	}
	if r.Lower.Unbounded && r.Upper.Unbounded {
		return ""
	}
	if !r.Lower.Unbounded && !r.Upper.Unbounded &&
		r.Lower.Inclusive && r.Upper.Inclusive && r.Lower.V.Equal(r.Upper.V) {
		return r.Lower.V.String()
	}
	if !r.Lower.Unbounded && !r.Upper.Unbounded &&
		r.Lower.Inclusive && !r.Upper.Inclusive &&
		r.Upper.V.Equal(r.Lower.V.NextMajor()) {
		return "^" + r.Lower.V.String()
	}
	var b strings.Builder
	if !r.Lower.Unbounded {
		if r.Lower.Inclusive {
			b.WriteString(">=" + r.Lower.V.String())
		} else {
			b.WriteString(">" + r.Lower.V.String())
		}
	}
	if !r.Upper.Unbounded {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		if r.Upper.Inclusive {
			b.WriteString("<=" + r.Upper.V.String())
		} else {
			b.WriteString("<" + r.Upper.V.String())
		}
	}
	return b.String()
}
