// Package localdev implements the local-development overlay: symlink-based
// substitution of a live package source tree for a published version, plus
// the bidirectional consumer-tracking machinery that keeps every dependent
// application in sync with edits to the overridden package.
package localdev

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/elm-wrap/wrap/registry"
	"github.com/pkg/errors"
)

// Overlay registers and unregisters local-dev packages against an
// ELM_HOME cache tree, removing whatever currently occupies a path before
// placing the replacement there.
type Overlay struct {
	ElmHome    string
	V1Registry *registry.Registry
}

// packageManifestProbe reads just enough of elm.json to confirm it
// describes a package (not an application) manifest.
type packageManifestProbe struct {
	Type string `json:"type"`
}

// Register resolves sourcePath to absolute, verifies it's a package
// manifest, creates or replaces the ELM_HOME symlink, and records the
// version in the V1 registry. The text local-dev block is appended
// separately by TextRegistry.Append, since that also needs the
// tracking-directory root, which Overlay doesn't own.
func (o *Overlay) Register(author, name string, v pgsolver.Version, sourcePath string) error {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return errors.Wrapf(err, "resolving %s to an absolute path", sourcePath)
	}

	if err := verifyPackageManifest(abs); err != nil {
		return err
	}

	linkPath := filepath.Join(o.ElmHome, "packages", author, name, v.String())
	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent directory for %s", linkPath)
	}

	// Remove whatever currently occupies linkPath (file, directory, or a
	// stale symlink) before placing the new one.
	if err := os.RemoveAll(linkPath); err != nil {
		return errors.Wrapf(err, "clearing prior contents of %s", linkPath)
	}
	if err := os.Symlink(abs, linkPath); err != nil {
		return errors.Wrapf(err, "symlinking %s -> %s", linkPath, abs)
	}

	o.V1Registry.AddVersion(author, name, v, false)
	return nil
}

func verifyPackageManifest(packageDir string) error {
	data, err := os.ReadFile(filepath.Join(packageDir, "elm.json"))
	if err != nil {
		return errors.Wrapf(err, "reading elm.json under %s", packageDir)
	}
	var probe packageManifestProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return errors.Wrapf(err, "parsing elm.json under %s", packageDir)
	}
	if probe.Type != "package" {
		return errors.Errorf("%s is not a package manifest (type=%q)", packageDir, probe.Type)
	}
	return nil
}

// Unregister removes the ELM_HOME symlink and V1 registry entry for
// (author, name, version). The local-dev text block and tracking subtree
// removal are TextRegistry's and Tracking's jobs respectively, since both
// need the tracking-directory root that Overlay doesn't own.
func (o *Overlay) Unregister(author, name string, v pgsolver.Version) error {
	linkPath := filepath.Join(o.ElmHome, "packages", author, name, v.String())
	if err := os.RemoveAll(linkPath); err != nil {
		return errors.Wrapf(err, "removing local-dev symlink %s", linkPath)
	}
	o.V1Registry.RemoveVersion(author, name, v, true)
	return nil
}

// IsLocalDevVersion reports whether v is one of the two version numbers
// reserved to mean "served from a live source tree": 0.0.0 or 999.0.0.
func IsLocalDevVersion(v pgsolver.Version) bool {
	return (v == pgsolver.Version{Major: 0, Minor: 0, Patch: 0}) || (v == pgsolver.Version{Major: 999, Minor: 0, Patch: 0})
}
