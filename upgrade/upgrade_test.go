package upgrade

import (
	"testing"

	"github.com/elm-wrap/wrap/pgsolver"
)

func v(s string) pgsolver.Version {
	ver, err := pgsolver.ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return ver
}

func TestToFromSemverRoundTrip(t *testing.T) {
	orig := v("1.2.3")
	if got := FromSemver(ToSemver(orig)); !got.Equal(orig) {
		t.Errorf("round trip: got %s, want %s", got, orig)
	}
}

func TestSatisfiesWithinMinorRange(t *testing.T) {
	r := pgsolver.UntilNextMinor(v("1.2.0"))
	ok, err := Satisfies(v("1.2.5"), r)
	if err != nil {
		t.Fatalf("Satisfies: %v", err)
	}
	if !ok {
		t.Errorf("expected 1.2.5 to satisfy [1.2.0, 1.3.0)")
	}
	ok, err = Satisfies(v("1.3.0"), r)
	if err != nil {
		t.Fatalf("Satisfies: %v", err)
	}
	if ok {
		t.Errorf("expected 1.3.0 not to satisfy [1.2.0, 1.3.0)")
	}
}

// A 0.x next-major range runs to 1.0.0. Rendering it as ^0.2.3 would make
// the library narrow it to < 0.3.0, so ConstraintString spells the bounds
// out and Satisfies must agree with VersionRange.Contains throughout.
func TestSatisfiesZeroMajorRangeMatchesContains(t *testing.T) {
	r := pgsolver.UntilNextMajor(v("0.2.3"))
	for _, probe := range []string{"0.2.2", "0.2.3", "0.3.0", "0.5.0", "0.19.1", "1.0.0"} {
		pv := v(probe)
		ok, err := Satisfies(pv, r)
		if err != nil {
			t.Fatalf("Satisfies(%s): %v", probe, err)
		}
		if want := r.Contains(pv); ok != want {
			t.Errorf("Satisfies(%s) = %v, Contains = %v", probe, ok, want)
		}
	}
}

func TestSatisfiesAgreesWithContains(t *testing.T) {
	ranges := []pgsolver.VersionRange{
		pgsolver.Any(),
		pgsolver.None(),
		pgsolver.Exact(v("1.0.0")),
		pgsolver.UntilNextMinor(v("1.2.0")),
		pgsolver.UntilNextMajor(v("2.0.0")),
	}
	probes := []string{"0.1.0", "1.0.0", "1.2.0", "1.2.9", "1.3.0", "2.0.0", "2.5.0", "3.0.0"}
	for _, r := range ranges {
		for _, probe := range probes {
			pv := v(probe)
			ok, err := Satisfies(pv, r)
			if err != nil {
				t.Fatalf("Satisfies(%s, %q): %v", probe, ConstraintString(r), err)
			}
			if want := r.Contains(pv); ok != want {
				t.Errorf("range %q probe %s: Satisfies = %v, Contains = %v", ConstraintString(r), probe, ok, want)
			}
		}
	}
}

func TestSortDescending(t *testing.T) {
	versions := []pgsolver.Version{v("1.0.0"), v("2.0.0"), v("1.5.0")}
	SortDescending(versions)
	want := []pgsolver.Version{v("2.0.0"), v("1.5.0"), v("1.0.0")}
	for i := range want {
		if !versions[i].Equal(want[i]) {
			t.Fatalf("index %d: got %s, want %s", i, versions[i], want[i])
		}
	}
}

func TestClassify(t *testing.T) {
	cur := v("1.2.3")
	cases := []struct {
		cand pgsolver.Version
		want Kind
	}{
		{v("1.2.3"), KindNone},
		{v("1.2.4"), KindPatch},
		{v("1.3.0"), KindMinor},
		{v("2.0.0"), KindMajor},
	}
	for _, c := range cases {
		if got := Classify(cur, c.cand); got != c.want {
			t.Errorf("Classify(%s, %s) = %v, want %v", cur, c.cand, got, c.want)
		}
	}
}

func TestMinorAndMajorCandidates(t *testing.T) {
	cur := v("1.2.3")
	versions := []pgsolver.Version{v("2.1.0"), v("2.0.0"), v("1.5.0"), v("1.2.4"), v("1.0.0")}
	SortDescending(versions)

	minors, err := MinorCandidates(cur, versions)
	if err != nil {
		t.Fatalf("MinorCandidates: %v", err)
	}
	if len(minors) != 2 {
		t.Fatalf("MinorCandidates: got %d, want 2: %+v", len(minors), minors)
	}
	if minors[0].Version.String() != "1.5.0" || minors[1].Version.String() != "1.2.4" {
		t.Errorf("MinorCandidates out of order: %+v", minors)
	}

	majors, err := MajorCandidates(cur, versions)
	if err != nil {
		t.Fatalf("MajorCandidates: %v", err)
	}
	if len(majors) != 2 {
		t.Fatalf("MajorCandidates: got %d, want 2: %+v", len(majors), majors)
	}
	for _, m := range majors {
		if m.Kind != KindMajor {
			t.Errorf("expected KindMajor, got %v", m.Kind)
		}
	}
}

// A 0.x current version must still offer same-major candidates up to, but
// not including, 1.0.0.
func TestMinorCandidatesZeroMajor(t *testing.T) {
	cur := v("0.2.3")
	versions := []pgsolver.Version{v("1.0.0"), v("0.19.1"), v("0.3.0"), v("0.2.4"), v("0.1.0")}
	SortDescending(versions)

	minors, err := MinorCandidates(cur, versions)
	if err != nil {
		t.Fatalf("MinorCandidates: %v", err)
	}
	if len(minors) != 3 {
		t.Fatalf("MinorCandidates: got %d, want 3: %+v", len(minors), minors)
	}
	for _, m := range minors {
		if m.Version.Major != 0 {
			t.Errorf("candidate %s crosses the major boundary", m.Version)
		}
	}
}

func TestLatestWithin(t *testing.T) {
	versions := []pgsolver.Version{v("2.0.0"), v("1.5.0"), v("1.0.0")}
	r := pgsolver.UntilNextMajor(v("1.0.0"))
	got, ok, err := LatestWithin(versions, r)
	if err != nil {
		t.Fatalf("LatestWithin: %v", err)
	}
	if !ok {
		t.Fatal("expected a match")
	}
	if !got.Equal(v("1.5.0")) {
		t.Errorf("got %s, want 1.5.0", got)
	}

	_, ok, err = LatestWithin(versions, pgsolver.None())
	if err != nil {
		t.Fatalf("LatestWithin: %v", err)
	}
	if ok {
		t.Error("expected no match against an empty range")
	}
}

func TestConstraintStringShapes(t *testing.T) {
	cases := []struct {
		r    pgsolver.VersionRange
		want string
	}{
		{pgsolver.Any(), "*"},
		{pgsolver.Exact(v("1.2.3")), "1.2.3"},
		{pgsolver.UntilNextMajor(v("1.0.0")), ">= 1.0.0, < 2.0.0"},
		{pgsolver.UntilNextMajor(v("0.2.3")), ">= 0.2.3, < 1.0.0"},
		{pgsolver.UntilNextMinor(v("1.2.0")), ">= 1.2.0, < 1.3.0"},
	}
	for _, c := range cases {
		if got := ConstraintString(c.r); got != c.want {
			t.Errorf("ConstraintString = %q, want %q", got, c.want)
		}
	}
}
