// Package manifest defines the project manifest tagged union (Application
// vs. Package) and the PackageMap type shared by both.
package manifest

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// PackageMap is an ordered mapping from (author, name) to a version
// string: an exact version on the application side, a range constraint
// like "1.0.0 <= v < 2.0.0" on the package side. Keys reports entries in
// the order Set first added them. That order is not carried through JSON:
// MarshalJSON writes keys sorted alphabetically, and UnmarshalJSON records
// them in Go map iteration order, not in the order of the file.
type PackageMap struct {
	entries map[string]string
	order   []string
}

// NewPackageMap returns an empty, ready-to-use PackageMap.
func NewPackageMap() *PackageMap {
	return &PackageMap{entries: make(map[string]string)}
}

// Set inserts or updates the constraint string for "author/name".
func (m *PackageMap) Set(key, constraint string) {
	if _, exists := m.entries[key]; !exists {
		m.order = append(m.order, key)
	}
	m.entries[key] = constraint
}

// Delete removes key, if present.
func (m *PackageMap) Delete(key string) {
	if _, exists := m.entries[key]; !exists {
		return
	}
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Get returns the constraint string for key and whether it was present.
func (m *PackageMap) Get(key string) (string, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Has reports whether key is present.
func (m *PackageMap) Has(key string) bool {
	_, ok := m.entries[key]
	return ok
}

// Keys returns the keys in insertion order.
func (m *PackageMap) Keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len reports the number of entries.
func (m *PackageMap) Len() int { return len(m.entries) }

func (m PackageMap) MarshalJSON() ([]byte, error) {
	ordered := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		ordered[k] = v
	}
	return json.Marshal(ordered)
}

func (m *PackageMap) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.entries = make(map[string]string, len(raw))
	m.order = make([]string, 0, len(raw))
	for k, v := range raw {
		m.entries[k] = v
		m.order = append(m.order, k)
	}
	return nil
}

// Kind distinguishes the two manifest variants.
type Kind uint8

const (
	KindApplication Kind = iota
	KindPackage
)

// Application is a project manifest for a buildable Elm application: four
// disjoint PackageMaps. A name appears in at most one of them;
// callers are responsible for keeping that invariant (Manifest.Validate
// checks it).
type Application struct {
	ElmVersion    string
	Direct        *PackageMap
	Indirect      *PackageMap
	TestDirect    *PackageMap
	TestIndirect  *PackageMap
}

// NewApplication returns an Application with all four maps initialized.
func NewApplication() *Application {
	return &Application{
		Direct:       NewPackageMap(),
		Indirect:     NewPackageMap(),
		TestDirect:   NewPackageMap(),
		TestIndirect: NewPackageMap(),
	}
}

// Package is a project manifest for a publishable Elm package.
type Package struct {
	Name            string
	Version         string
	Dependencies    *PackageMap
	TestDependencies *PackageMap
	ExposedModules  []string
}

// NewPackage returns a Package with its maps initialized.
func NewPackage(name, version string) *Package {
	return &Package{
		Name:             name,
		Version:          version,
		Dependencies:     NewPackageMap(),
		TestDependencies: NewPackageMap(),
	}
}

// Manifest is the tagged union of the two project manifest kinds.
type Manifest struct {
	Kind Kind
	App  *Application
	Pkg  *Package
}

// Validate checks the "name appears in at most one map" invariant for
// Application manifests; Package manifests have nothing analogous to
// check since dependencies/test-dependencies are allowed to overlap only
// in the sense that a name in both is simply redundant, not invalid.
func (m *Manifest) Validate() error {
	if m.Kind != KindApplication || m.App == nil {
		return nil
	}
	seen := make(map[string]string)
	maps := []struct {
		name string
		pm   *PackageMap
	}{
		{"direct", m.App.Direct},
		{"indirect", m.App.Indirect},
		{"test-direct", m.App.TestDirect},
		{"test-indirect", m.App.TestIndirect},
	}
	for _, entry := range maps {
		for _, k := range entry.pm.Keys() {
			if prior, exists := seen[k]; exists {
				return errors.Errorf("package %q appears in both %s and %s dependency maps", k, prior, entry.name)
			}
			seen[k] = entry.name
		}
	}
	return nil
}
