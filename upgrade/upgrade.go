// Package upgrade implements the minor/major candidate discovery behind
// upgrade reporting. The solver's own Version/VersionRange types stay
// bespoke triples; this package translates them into
// github.com/Masterminds/semver/v3 versions and constraints and lets the
// library do the range satisfaction and sorting rather than hand-rolling
// it twice.
package upgrade

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/pkg/errors"
)

// ToSemver converts an Elm Version into a semver.Version. Elm versions
// carry no prerelease/build metadata, so the conversion is lossless.
func ToSemver(v pgsolver.Version) *semver.Version {
	return semver.New(uint64(v.Major), uint64(v.Minor), uint64(v.Patch), "", "")
}

// FromSemver converts a semver.Version back into an Elm Version, truncating
// any prerelease/build metadata a caller-supplied semver string might have
// carried (Elm constraints never do, but this keeps the conversion total).
func FromSemver(sv *semver.Version) pgsolver.Version {
	return pgsolver.Version{Major: int(sv.Major()), Minor: int(sv.Minor()), Patch: int(sv.Patch())}
}

// ConstraintString renders a VersionRange in the library's constraint
// syntax, comma-separated for AND. Caret shorthand is deliberately never
// emitted: the library reads ^0.2.3 as < 0.3.0, while an Elm 0.x
// next-major range runs to 1.0.0, so bounds are always spelled out.
func ConstraintString(r pgsolver.VersionRange) string {
	if r.IsEmpty {
		return "< 0.0.0"
	}
	if r.Lower.Unbounded && r.Upper.Unbounded {
		return "*"
	}
	if !r.Lower.Unbounded && !r.Upper.Unbounded &&
		r.Lower.Inclusive && r.Upper.Inclusive && r.Lower.V.Equal(r.Upper.V) {
		return r.Lower.V.String()
	}
	var parts []string
	if !r.Lower.Unbounded {
		op := ">="
		if !r.Lower.Inclusive {
			op = ">"
		}
		parts = append(parts, op+" "+r.Lower.V.String())
	}
	if !r.Upper.Unbounded {
		op := "<"
		if r.Upper.Inclusive {
			op = "<="
		}
		parts = append(parts, op+" "+r.Upper.V.String())
	}
	return strings.Join(parts, ", ")
}

// Satisfies reports whether v falls within r, via the library's own
// constraint checking. Tests cross-validate it against
// VersionRange.Contains so the two implementations cannot drift apart
// silently.
func Satisfies(v pgsolver.Version, r pgsolver.VersionRange) (bool, error) {
	if r.IsEmpty {
		return false, nil
	}
	c, err := semver.NewConstraint(ConstraintString(r))
	if err != nil {
		return false, errors.Wrapf(err, "parsing constraint %q", ConstraintString(r))
	}
	return c.Check(ToSemver(v)), nil
}

// SortDescending sorts versions newest-first, the ordering every provider
// hands the solver, using the library's comparison.
func SortDescending(versions []pgsolver.Version) {
	svs := make(semver.Collection, len(versions))
	for i, v := range versions {
		svs[i] = ToSemver(v)
	}
	sort.Sort(sort.Reverse(svs))
	for i, sv := range svs {
		versions[i] = FromSemver(sv)
	}
}

// Kind classifies the size of a candidate upgrade relative to the current
// version.
type Kind uint8

const (
	KindNone Kind = iota
	KindPatch
	KindMinor
	KindMajor
)

// Classify reports how big a jump candidate is relative to current.
func Classify(current, candidate pgsolver.Version) Kind {
	cur, cand := ToSemver(current), ToSemver(candidate)
	switch {
	case cand.Equal(cur):
		return KindNone
	case cand.Major() != cur.Major():
		return KindMajor
	case cand.Minor() != cur.Minor():
		return KindMinor
	default:
		return KindPatch
	}
}

// Candidate is one upgrade option surfaced to a caller deciding between an
// in-range bump and a breaking jump.
type Candidate struct {
	Version pgsolver.Version
	Kind    Kind
}

// MinorCandidates returns, from versions (assumed newest-first), every
// version newer than current that stays within current's major version:
// the "safe" upgrade set a caller would offer before suggesting a major
// bump.
func MinorCandidates(current pgsolver.Version, versions []pgsolver.Version) ([]Candidate, error) {
	expr := fmt.Sprintf("> %s, < %d.0.0", current, current.Major+1)
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing constraint %q", expr)
	}
	var out []Candidate
	for _, v := range versions {
		if c.Check(ToSemver(v)) {
			out = append(out, Candidate{Version: v, Kind: Classify(current, v)})
		}
	}
	return out, nil
}

// MajorCandidates returns every version beyond current's major version:
// candidates that require the caller's explicit opt-in to a breaking
// upgrade.
func MajorCandidates(current pgsolver.Version, versions []pgsolver.Version) ([]Candidate, error) {
	expr := fmt.Sprintf(">= %d.0.0", current.Major+1)
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing constraint %q", expr)
	}
	var out []Candidate
	for _, v := range versions {
		if c.Check(ToSemver(v)) {
			out = append(out, Candidate{Version: v, Kind: KindMajor})
		}
	}
	return out, nil
}

// LatestWithin returns the newest version in versions (newest-first)
// satisfying r, and whether any did.
func LatestWithin(versions []pgsolver.Version, r pgsolver.VersionRange) (pgsolver.Version, bool, error) {
	for _, v := range versions {
		ok, err := Satisfies(v, r)
		if err != nil {
			return pgsolver.Version{}, false, err
		}
		if ok {
			return v, true, nil
		}
	}
	return pgsolver.Version{}, false, nil
}
