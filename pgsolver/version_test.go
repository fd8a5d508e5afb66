package pgsolver

import "testing"

func mustParse(t *testing.T, s string) Version {
	t.Helper()
	v, err := ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", s, err)
	}
	return v
}

func TestParseVersionAcceptsCanonicalForm(t *testing.T) {
	cases := map[string]Version{
		"0.0.0":    {0, 0, 0},
		"1.2.3":    {1, 2, 3},
		"10.20.30": {10, 20, 30},
	}
	for in, want := range cases {
		got, err := ParseVersion(in)
		if err != nil {
			t.Errorf("ParseVersion(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseVersion(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseVersionRejectsNonCanonicalForms(t *testing.T) {
	bad := []string{"", "1", "1.0", "1.0.0.0", "01.0.0", "1.00.0", "1.0.-1", "a.b.c", "1.0.0 ", "v1.0.0"}
	for _, in := range bad {
		if _, err := ParseVersion(in); err == nil {
			t.Errorf("ParseVersion(%q) should fail", in)
		}
	}
}

func TestVersionCompareIsLexicographic(t *testing.T) {
	ordered := []string{"0.0.0", "0.0.1", "0.1.0", "0.1.1", "1.0.0", "1.0.9", "1.9.0", "2.0.0"}
	for i := 0; i < len(ordered); i++ {
		for j := 0; j < len(ordered); j++ {
			a, b := mustParse(t, ordered[i]), mustParse(t, ordered[j])
			want := 0
			if i < j {
				want = -1
			} else if i > j {
				want = 1
			}
			if got := a.Compare(b); got != want {
				t.Errorf("Compare(%s, %s) = %d, want %d", a, b, got, want)
			}
		}
	}
}

func TestRangeConstructors(t *testing.T) {
	v := mustParse(t, "1.2.3")

	if r := Exact(v); !r.Contains(v) || r.Contains(mustParse(t, "1.2.4")) {
		t.Error("Exact should contain only its own version")
	}

	minor := UntilNextMinor(v)
	if !minor.Contains(v) || !minor.Contains(mustParse(t, "1.2.9")) {
		t.Error("UntilNextMinor should include the base and later patches")
	}
	if minor.Contains(mustParse(t, "1.3.0")) {
		t.Error("UntilNextMinor upper bound is exclusive")
	}

	major := UntilNextMajor(v)
	if !major.Contains(mustParse(t, "1.9.9")) {
		t.Error("UntilNextMajor should include every later minor")
	}
	if major.Contains(mustParse(t, "2.0.0")) {
		t.Error("UntilNextMajor upper bound is exclusive")
	}

	if !Any().Contains(mustParse(t, "999.0.0")) {
		t.Error("Any should contain everything")
	}
	if None().Contains(v) {
		t.Error("None should contain nothing")
	}
}

// Intersection contains v iff both operands contain v, and is commutative
// and idempotent.
func TestIntersectAlgebra(t *testing.T) {
	ranges := []VersionRange{
		Any(),
		None(),
		Exact(mustParse(t, "1.0.0")),
		UntilNextMinor(mustParse(t, "1.0.0")),
		UntilNextMajor(mustParse(t, "1.0.0")),
		UntilNextMajor(mustParse(t, "2.0.0")),
		{Lower: VersionBound{V: mustParse(t, "1.5.0"), Inclusive: false}, Upper: VersionBound{Unbounded: true}},
	}
	probes := []Version{
		{0, 9, 0}, {1, 0, 0}, {1, 0, 5}, {1, 1, 0}, {1, 5, 0}, {1, 5, 1}, {2, 0, 0}, {3, 0, 0},
	}

	for _, a := range ranges {
		for _, b := range ranges {
			ab := a.Intersect(b)
			ba := b.Intersect(a)
			for _, v := range probes {
				want := a.Contains(v) && b.Contains(v)
				if got := ab.Contains(v); got != want {
					t.Errorf("(%s ∩ %s).Contains(%s) = %v, want %v", a, b, v, got, want)
				}
				if got := ba.Contains(v); got != want {
					t.Errorf("intersect not commutative at %s for %s / %s", v, a, b)
				}
			}
		}
		aa := a.Intersect(a)
		for _, v := range probes {
			if aa.Contains(v) != a.Contains(v) {
				t.Errorf("intersect not idempotent for %s at %s", a, v)
			}
		}
	}
}

func TestIntersectDisjointIsEmpty(t *testing.T) {
	a := UntilNextMajor(mustParse(t, "1.0.0"))
	b := UntilNextMajor(mustParse(t, "2.0.0"))
	if got := a.Intersect(b); !got.IsEmpty {
		t.Errorf("expected empty intersection, got %s", got)
	}
}

func TestIntersectTouchingBoundsRespectsInclusivity(t *testing.T) {
	one := mustParse(t, "1.0.0")
	upTo := VersionRange{Lower: VersionBound{Unbounded: true}, Upper: VersionBound{V: one, Inclusive: true}}
	from := VersionRange{Lower: VersionBound{V: one, Inclusive: true}, Upper: VersionBound{Unbounded: true}}
	if got := upTo.Intersect(from); got.IsEmpty || !got.Contains(one) {
		t.Errorf("inclusive-inclusive touch should keep the single version, got %s", got)
	}

	fromExcl := VersionRange{Lower: VersionBound{V: one, Inclusive: false}, Upper: VersionBound{Unbounded: true}}
	if got := upTo.Intersect(fromExcl); !got.IsEmpty {
		t.Errorf("inclusive-exclusive touch should be empty, got %s", got)
	}
}

func TestRangeString(t *testing.T) {
	cases := []struct {
		r    VersionRange
		want string
	}{
		{Any(), ""},
		{Exact(mustParse(t, "1.2.3")), "1.2.3"},
		{UntilNextMajor(mustParse(t, "1.0.0")), "^1.0.0"},
		{UntilNextMinor(mustParse(t, "1.2.0")), ">=1.2.0 <1.3.0"},
		{VersionRange{
			Lower: VersionBound{V: mustParse(t, "1.0.0"), Inclusive: true},
			Upper: VersionBound{V: mustParse(t, "3.0.0"), Inclusive: false},
		}, ">=1.0.0 <3.0.0"},
	}
	for _, c := range cases {
		if got := c.r.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestTermSatisfaction(t *testing.T) {
	caret := UntilNextMajor(mustParse(t, "1.0.0"))
	pos := posTerm(1, caret)
	neg := negTerm(1, caret)

	inside := Exact(mustParse(t, "1.5.0"))
	outside := Exact(mustParse(t, "2.0.0"))

	if !pos.satisfiedBy(inside) {
		t.Error("positive term should be satisfied by a contained selection")
	}
	if !pos.contradictedBy(outside) {
		t.Error("positive term should be contradicted by a disjoint selection")
	}
	if !neg.satisfiedBy(outside) {
		t.Error("negative term should be satisfied by a disjoint selection")
	}
	if !neg.contradictedBy(inside) {
		t.Error("negative term should be contradicted by a contained selection")
	}
}

func TestExcludeRange(t *testing.T) {
	caret2 := UntilNextMajor(mustParse(t, "2.0.0")) // [2.0.0, 3.0.0)

	// Excluding the bottom edge keeps the top portion.
	got := excludeRange(caret2, Exact(mustParse(t, "2.0.0")))
	if got.Contains(mustParse(t, "2.0.0")) {
		t.Errorf("2.0.0 should be excluded, got %s", got)
	}
	if !got.Contains(mustParse(t, "2.0.1")) || !got.Contains(mustParse(t, "2.9.0")) {
		t.Errorf("rest of the caret range should survive, got %s", got)
	}

	// Excluding a covering range leaves nothing.
	if got := excludeRange(caret2, Any()); !got.IsEmpty {
		t.Errorf("excluding everything should be empty, got %s", got)
	}

	// Excluding a disjoint range changes nothing.
	got = excludeRange(caret2, UntilNextMajor(mustParse(t, "5.0.0")))
	if !got.equalRange(caret2) {
		t.Errorf("disjoint exclusion should be a no-op, got %s", got)
	}

	// Excluding the top portion keeps the bottom.
	got = excludeRange(Any(), UntilNextMajor(mustParse(t, "2.0.0")))
	if got.Contains(mustParse(t, "2.5.0")) {
		t.Errorf("excluded portion should be gone, got %s", got)
	}
	if !got.Contains(mustParse(t, "1.9.9")) {
		t.Errorf("portion below the exclusion should survive, got %s", got)
	}
}
