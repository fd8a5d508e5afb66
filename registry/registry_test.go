package registry

import (
	"testing"
)

func TestAddVersionKeepsNewestFirst(t *testing.T) {
	reg := New()
	for _, s := range []string{"1.0.0", "2.0.0", "1.5.0"} {
		if got := reg.AddVersion("elm", "core", mustVersion(t, s), false); got != Inserted {
			t.Fatalf("AddVersion(%s) = %v, want Inserted", s, got)
		}
	}

	e, ok := reg.Lookup("elm", "core")
	if !ok {
		t.Fatal("expected elm/core entry")
	}
	versions := e.Versions()
	want := []string{"2.0.0", "1.5.0", "1.0.0"}
	if len(versions) != len(want) {
		t.Fatalf("got %v", versions)
	}
	for i, s := range want {
		if versions[i].String() != s {
			t.Errorf("index %d: got %s, want %s", i, versions[i], s)
		}
	}
}

func TestAddVersionDuplicateIsNoOp(t *testing.T) {
	reg := New()
	v := mustVersion(t, "1.0.0")
	reg.AddVersion("elm", "core", v, true)
	before := reg.SinceCount

	if got := reg.AddVersion("elm", "core", v, true); got != AlreadyPresent {
		t.Fatalf("second AddVersion = %v, want AlreadyPresent", got)
	}
	if reg.SinceCount != before {
		t.Errorf("since_count should not bump on AlreadyPresent: %d -> %d", before, reg.SinceCount)
	}
	e, _ := reg.Lookup("elm", "core")
	if len(e.Versions()) != 1 {
		t.Errorf("expected one version, got %v", e.Versions())
	}
}

func TestRemoveVersionDropsEmptyEntry(t *testing.T) {
	reg := New()
	v := mustVersion(t, "1.0.0")
	reg.AddVersion("elm", "core", v, false)

	if got := reg.RemoveVersion("elm", "core", v, true); got != Removed {
		t.Fatalf("RemoveVersion = %v, want Removed", got)
	}
	if _, ok := reg.Lookup("elm", "core"); ok {
		t.Error("entry should be dropped once its last version is removed")
	}
	if got := reg.RemoveVersion("elm", "core", v, true); got != NotPresent {
		t.Errorf("removing again = %v, want NotPresent", got)
	}
}

func TestRemoveVersionKeepsEntryWithoutDropFlag(t *testing.T) {
	reg := New()
	v := mustVersion(t, "1.0.0")
	reg.AddVersion("elm", "core", v, false)

	if got := reg.RemoveVersion("elm", "core", v, false); got != Removed {
		t.Fatalf("RemoveVersion = %v, want Removed", got)
	}
	e, ok := reg.Lookup("elm", "core")
	if !ok {
		t.Fatal("entry should survive without drop_empty_entry")
	}
	if len(e.Versions()) != 0 {
		t.Errorf("expected an empty version list, got %v", e.Versions())
	}
}

func TestEntriesAreSortedByAuthorName(t *testing.T) {
	reg := New()
	reg.AddVersion("zeta", "pkg", mustVersion(t, "1.0.0"), false)
	reg.AddVersion("alpha", "pkg", mustVersion(t, "1.0.0"), false)
	reg.AddVersion("alpha", "aardvark", mustVersion(t, "1.0.0"), false)

	entries := reg.Entries()
	want := []string{"alpha/aardvark", "alpha/pkg", "zeta/pkg"}
	for i, k := range want {
		if entries[i].key() != k {
			t.Errorf("index %d: got %s, want %s", i, entries[i].key(), k)
		}
	}
}

// Applying a two-entry /since list to an empty registry yields two
// single-version entries and since_count 2; reapplying the same list is an
// insert no-op but bumps since_count to 4 (the increment counts received
// entries, not new insertions).
func TestIncrementalApplyCountsReceivedEntries(t *testing.T) {
	reg := New()
	list := []string{"elm/core@1.0.0", "elm/html@1.0.0"}

	if err := reg.IncrementalApply(list); err != nil {
		t.Fatalf("IncrementalApply: %v", err)
	}
	if len(reg.Entries()) != 2 {
		t.Fatalf("expected two entries, got %d", len(reg.Entries()))
	}
	for _, name := range []string{"core", "html"} {
		e, ok := reg.Lookup("elm", name)
		if !ok || len(e.Versions()) != 1 {
			t.Errorf("elm/%s: ok=%v versions=%v", name, ok, e.Versions())
		}
	}
	if reg.SinceCount != 2 {
		t.Errorf("since_count = %d, want 2", reg.SinceCount)
	}

	if err := reg.IncrementalApply(list); err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if len(reg.Entries()) != 2 {
		t.Errorf("reapply should not create entries, got %d", len(reg.Entries()))
	}
	if reg.SinceCount != 4 {
		t.Errorf("since_count after reapply = %d, want 4", reg.SinceCount)
	}
}

func TestIncrementalApplyRejectsMalformedEntries(t *testing.T) {
	reg := New()
	for _, bad := range []string{"no-at-sign", "elm/core@not.a.version", "noauthor@1.0.0"} {
		if err := reg.IncrementalApply([]string{bad}); err == nil {
			t.Errorf("expected an error for %q", bad)
		}
	}
}

func TestIncrementalApplyOverflowIsFatal(t *testing.T) {
	reg := New()
	reg.SinceCount = ^uint64(0) - 1
	err := reg.IncrementalApply([]string{"elm/core@1.0.0", "elm/html@1.0.0"})
	if err == nil {
		t.Fatal("expected an overflow error")
	}
	if reg.SinceCount != ^uint64(0)-1 {
		t.Errorf("since_count should be untouched on overflow, got %d", reg.SinceCount)
	}
}

func TestSetStatusAndPruneWithdrawn(t *testing.T) {
	reg := New()
	v1 := mustVersion(t, "1.0.0")
	v2 := mustVersion(t, "2.0.0")
	reg.AddVersion("acme", "lib", v1, false)
	reg.AddVersion("acme", "lib", v2, false)

	if !reg.SetStatus("acme", "lib", v1, StatusDeprecated) {
		t.Fatal("SetStatus on a known version should succeed")
	}
	if reg.SetStatus("acme", "lib", mustVersion(t, "9.9.9"), StatusDeprecated) {
		t.Error("SetStatus on an unknown version should report false")
	}

	e, _ := reg.Lookup("acme", "lib")
	if got := e.ValidVersions(); len(got) != 1 || !got[0].Equal(v2) {
		t.Errorf("ValidVersions after deprecation: %v", got)
	}

	if n := reg.PruneWithdrawn("acme", "lib"); n != 1 {
		t.Errorf("PruneWithdrawn = %d, want 1", n)
	}
	if e.StatusOf(v1) != StatusWithdrawn {
		t.Errorf("expected 1.0.0 to be withdrawn, got %v", e.StatusOf(v1))
	}
	if len(e.Versions()) != 2 {
		t.Error("PruneWithdrawn must not delete history")
	}
}
