package cache

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/elm-wrap/wrap/pgsolver"
)

func writeTestZip(t *testing.T, path string, rootDir string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(filepath.ToSlash(filepath.Join(rootDir, name)))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractZipFlattensSingleRootDir(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "archive.zip")
	writeTestZip(t, archive, "author-pkg-1.0.0", map[string]string{
		"elm.json":     `{"type":"package"}`,
		"src/Main.elm": "module Main exposing (..)",
	})

	dest := filepath.Join(dir, "extracted")
	if err := extractZip(archive, dest); err != nil {
		t.Fatalf("extractZip: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "elm.json"))
	if err != nil {
		t.Fatalf("reading elm.json: %v", err)
	}
	if string(data) != `{"type":"package"}` {
		t.Errorf("elm.json content: %q", data)
	}
	if _, err := os.Stat(filepath.Join(dest, "src", "Main.elm")); err != nil {
		t.Errorf("expected src/Main.elm to exist: %v", err)
	}
}

func TestCachePackagePathAndExists(t *testing.T) {
	elmHome := t.TempDir()
	mirror := NewMirrorManifest()
	c, err := New(elmHome, mirror, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v := pgsolver.Version{Major: 1, Minor: 0, Patch: 0}

	if c.Exists("elm", "core", v) {
		t.Error("expected Exists to be false before any package is placed")
	}

	path := c.PackagePath("elm", "core", v)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if !c.Exists("elm", "core", v) {
		t.Error("expected Exists to be true once the directory exists")
	}
}
