package cache

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/pkg/errors"
)

// mirrorEntry is one version's recorded provenance within a package's
// mirror-manifest block.
type mirrorEntry struct {
	Hash string `json:"hash"`
	URL  string `json:"url"`
}

// rawMirrorManifest is the on-disk JSON shape: "author/name" -> version ->
// mirrorEntry, kept separate from the in-memory shape.
type rawMirrorManifest struct {
	Packages map[string]map[string]mirrorEntry `json:"packages"`
}

// MirrorManifest is a content-addressable index: lookups by
// (author, name, version) -> hash and by hash -> bool, letting
// one archive deduplicate across multiple package/version triples.
type MirrorManifest struct {
	mu       sync.Mutex
	packages map[string]map[string]mirrorEntry
	byHash   map[string]bool
}

// NewMirrorManifest returns an empty manifest.
func NewMirrorManifest() *MirrorManifest {
	return &MirrorManifest{
		packages: make(map[string]map[string]mirrorEntry),
		byHash:   make(map[string]bool),
	}
}

// LoadMirrorManifest reads path if present, returning an empty manifest
// (not an error) if it does not exist, a fresh cache has no manifest yet.
func LoadMirrorManifest(path string) (*MirrorManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewMirrorManifest(), nil
		}
		return nil, errors.Wrapf(err, "reading mirror manifest %s", path)
	}
	var raw rawMirrorManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing mirror manifest %s", path)
	}
	m := NewMirrorManifest()
	for pkg, versions := range raw.Packages {
		m.packages[pkg] = versions
		for _, e := range versions {
			m.byHash[e.Hash] = true
		}
	}
	return m, nil
}

func key(author, name string) string { return author + "/" + name }

// Hash returns the recorded SHA-1 for (author, name, version), if known.
func (m *MirrorManifest) Hash(author, name string, v pgsolver.Version) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions, ok := m.packages[key(author, name)]
	if !ok {
		return "", false
	}
	e, ok := versions[v.String()]
	return e.Hash, ok
}

// HasHash reports whether any package/version is already recorded under
// hash, the cross-package dedup check.
func (m *MirrorManifest) HasHash(hash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byHash[hash]
}

// Add upserts the (author, name, version) -> (hash, url) mapping.
func (m *MirrorManifest) Add(author, name string, v pgsolver.Version, hash, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(author, name)
	versions, ok := m.packages[k]
	if !ok {
		versions = make(map[string]mirrorEntry)
		m.packages[k] = versions
	}
	versions[v.String()] = mirrorEntry{Hash: hash, URL: url}
	m.byHash[hash] = true
}

// WriteJSON atomically persists the manifest to path.
func (m *MirrorManifest) WriteJSON(path string) error {
	m.mu.Lock()
	raw := rawMirrorManifest{Packages: m.packages}
	data, err := json.MarshalIndent(raw, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "encoding mirror manifest")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing temp mirror manifest %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "renaming mirror manifest into place at %s", path)
	}
	return nil
}
