package manifest

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// rawApplication is the on-disk elm.json shape for an Application
// manifest, kept separate from the in-memory Application so the wire
// layout can evolve without leaking into callers.
type rawApplication struct {
	Type         string `json:"type"`
	ElmVersion   string `json:"elm-version"`
	Dependencies struct {
		Direct   *PackageMap `json:"direct"`
		Indirect *PackageMap `json:"indirect"`
	} `json:"dependencies"`
	TestDependencies struct {
		Direct   *PackageMap `json:"direct"`
		Indirect *PackageMap `json:"indirect"`
	} `json:"test-dependencies"`
}

// ReadApplicationFile loads an Application manifest from an elm.json path.
func ReadApplicationFile(path string) (*Application, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var raw rawApplication
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if raw.Type != "" && raw.Type != "application" {
		return nil, errors.Errorf("%s is not an application manifest (type=%q)", path, raw.Type)
	}

	app := NewApplication()
	app.ElmVersion = raw.ElmVersion
	if raw.Dependencies.Direct != nil {
		app.Direct = raw.Dependencies.Direct
	}
	if raw.Dependencies.Indirect != nil {
		app.Indirect = raw.Dependencies.Indirect
	}
	if raw.TestDependencies.Direct != nil {
		app.TestDirect = raw.TestDependencies.Direct
	}
	if raw.TestDependencies.Indirect != nil {
		app.TestIndirect = raw.TestDependencies.Indirect
	}
	if err := (&Manifest{Kind: KindApplication, App: app}).Validate(); err != nil {
		return nil, err
	}
	return app, nil
}

// WriteApplicationFile atomically persists app to path as elm.json via
// temp-and-rename, so readers never observe a partially-written manifest.
func WriteApplicationFile(path string, app *Application) error {
	raw := rawApplication{Type: "application", ElmVersion: app.ElmVersion}
	raw.Dependencies.Direct = app.Direct
	raw.Dependencies.Indirect = app.Indirect
	raw.TestDependencies.Direct = app.TestDirect
	raw.TestDependencies.Indirect = app.TestIndirect

	data, err := json.MarshalIndent(raw, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encoding application manifest")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing temp file for %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "renaming into place %s", path)
	}
	return nil
}
