package manifest

import (
	"bytes"
	"testing"
)

func TestInstallPlanJSONRoundTrip(t *testing.T) {
	plan := &InstallPlan{Changes: []PackageChange{
		{Author: "elm", Name: "core", NewVersion: "1.0.5"},
		{Author: "elm", Name: "json", OldVersion: "1.1.2", NewVersion: "1.1.3"},
	}}

	var buf bytes.Buffer
	if err := plan.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	got, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if len(got.Changes) != 2 {
		t.Fatalf("expected two changes, got %d", len(got.Changes))
	}
	if got.Changes[0].OldVersion != "" {
		t.Errorf("fresh install should have no old version, got %q", got.Changes[0].OldVersion)
	}
	if got.Changes[1].OldVersion != "1.1.2" || got.Changes[1].NewVersion != "1.1.3" {
		t.Errorf("upgrade change mangled: %+v", got.Changes[1])
	}
}

func TestPackageMapPreservesInsertionOrder(t *testing.T) {
	m := NewPackageMap()
	m.Set("zeta/last", "1.0.0")
	m.Set("alpha/first", "2.0.0")
	m.Set("zeta/last", "1.0.1") // update must not reorder

	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "zeta/last" || keys[1] != "alpha/first" {
		t.Errorf("keys out of insertion order: %v", keys)
	}
	if v, _ := m.Get("zeta/last"); v != "1.0.1" {
		t.Errorf("update lost: %q", v)
	}

	m.Delete("zeta/last")
	if m.Has("zeta/last") || m.Len() != 1 {
		t.Errorf("delete failed: keys=%v", m.Keys())
	}
	m.Delete("zeta/last") // deleting twice is a no-op
}
