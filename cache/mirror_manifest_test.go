package cache

import (
	"path/filepath"
	"testing"

	"github.com/elm-wrap/wrap/pgsolver"
)

func TestMirrorManifestAddThenWriteThenLoad(t *testing.T) {
	m := NewMirrorManifest()
	v := pgsolver.Version{Major: 1, Minor: 0, Patch: 0}
	m.Add("elm", "core", v, "deadbeef", "https://example.invalid/core-1.0.0.zip")

	if !m.HasHash("deadbeef") {
		t.Error("expected HasHash to find the just-added hash")
	}
	if hash, ok := m.Hash("elm", "core", v); !ok || hash != "deadbeef" {
		t.Errorf("Hash: got %q, %v", hash, ok)
	}

	path := filepath.Join(t.TempDir(), "mirror-manifest.json")
	if err := m.WriteJSON(path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	loaded, err := LoadMirrorManifest(path)
	if err != nil {
		t.Fatalf("LoadMirrorManifest: %v", err)
	}
	if hash, ok := loaded.Hash("elm", "core", v); !ok || hash != "deadbeef" {
		t.Errorf("reloaded Hash: got %q, %v", hash, ok)
	}
	if !loaded.HasHash("deadbeef") {
		t.Error("expected reloaded manifest to carry HasHash too")
	}
}

func TestLoadMirrorManifestMissingFileIsEmpty(t *testing.T) {
	m, err := LoadMirrorManifest(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadMirrorManifest: %v", err)
	}
	if m.HasHash("anything") {
		t.Error("expected an empty manifest")
	}
}
