package localdev

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/elm-wrap/wrap/registry"
)

func writePackageManifest(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "elm.json"), []byte(`{"type":"package"}`), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOverlayRegisterCreatesSymlinkAndRegistryEntry(t *testing.T) {
	elmHome := t.TempDir()
	sourceDir := filepath.Join(t.TempDir(), "acme-lib")
	writePackageManifest(t, sourceDir)

	reg := registry.New()
	o := &Overlay{ElmHome: elmHome, V1Registry: reg}
	v := pgsolver.Version{Major: 0, Minor: 0, Patch: 0}

	if err := o.Register("acme", "lib", v, sourceDir); err != nil {
		t.Fatalf("Register: %v", err)
	}

	linkPath := filepath.Join(elmHome, "packages", "acme", "lib", "0.0.0")
	target, err := os.Readlink(linkPath)
	if err != nil {
		t.Fatalf("expected a symlink at %s: %v", linkPath, err)
	}
	if target != sourceDir {
		t.Errorf("symlink target: got %s, want %s", target, sourceDir)
	}

	entry, ok := reg.Lookup("acme", "lib")
	if !ok {
		t.Fatal("expected a registry entry for acme/lib")
	}
	if len(entry.Versions()) != 1 {
		t.Errorf("expected one version, got %v", entry.Versions())
	}
}

func TestOverlayRegisterRejectsApplicationManifest(t *testing.T) {
	elmHome := t.TempDir()
	sourceDir := filepath.Join(t.TempDir(), "not-a-package")
	if err := os.MkdirAll(sourceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sourceDir, "elm.json"), []byte(`{"type":"application"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	o := &Overlay{ElmHome: elmHome, V1Registry: registry.New()}
	v := pgsolver.Version{Major: 0, Minor: 0, Patch: 0}
	if err := o.Register("acme", "lib", v, sourceDir); err == nil {
		t.Error("expected Register to reject an application manifest")
	}
}

func TestOverlayUnregisterRemovesSymlinkAndEntry(t *testing.T) {
	elmHome := t.TempDir()
	sourceDir := filepath.Join(t.TempDir(), "acme-lib")
	writePackageManifest(t, sourceDir)

	reg := registry.New()
	o := &Overlay{ElmHome: elmHome, V1Registry: reg}
	v := pgsolver.Version{Major: 0, Minor: 0, Patch: 0}

	if err := o.Register("acme", "lib", v, sourceDir); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := o.Unregister("acme", "lib", v); err != nil {
		t.Fatalf("Unregister: %v", err)
	}

	linkPath := filepath.Join(elmHome, "packages", "acme", "lib", "0.0.0")
	if _, err := os.Lstat(linkPath); !os.IsNotExist(err) {
		t.Errorf("expected symlink to be removed, stat error: %v", err)
	}
	if _, ok := reg.Lookup("acme", "lib"); ok {
		t.Error("expected registry entry to be removed")
	}
}

func TestIsLocalDevVersion(t *testing.T) {
	cases := []struct {
		v    pgsolver.Version
		want bool
	}{
		{pgsolver.Version{Major: 0, Minor: 0, Patch: 0}, true},
		{pgsolver.Version{Major: 999, Minor: 0, Patch: 0}, true},
		{pgsolver.Version{Major: 1, Minor: 0, Patch: 0}, false},
	}
	for _, c := range cases {
		if got := IsLocalDevVersion(c.v); got != c.want {
			t.Errorf("IsLocalDevVersion(%s) = %v, want %v", c.v, got, c.want)
		}
	}
}
