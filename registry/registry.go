// Package registry implements the V1 binary and V2 text registry formats:
// an ordered collection of per-(author,name) version lists, kept sorted
// and de-duplicated on every mutation, with incremental /since
// synchronization.
package registry

import (
	"sort"

	"github.com/elm-wrap/wrap/pgsolver"
)

// Status classifies a version under the V2 protocol.
type Status uint8

const (
	StatusValid Status = iota
	StatusDeprecated
	StatusWithdrawn
)

func (s Status) String() string {
	switch s {
	case StatusDeprecated:
		return "deprecated"
	case StatusWithdrawn:
		return "withdrawn"
	default:
		return "valid"
	}
}

func ParseStatus(s string) Status {
	switch s {
	case "deprecated":
		return StatusDeprecated
	case "withdrawn":
		return StatusWithdrawn
	default:
		return StatusValid
	}
}

// versionStatus pairs a version with its V2 status. V1 entries carry no
// status information and are always implicitly StatusValid.
type versionStatus struct {
	v      pgsolver.Version
	status Status
}

// Entry is one (author, name) package's version list, kept newest-first
// and de-duplicated.
type Entry struct {
	Author, Name string
	versions     []versionStatus // newest-first
}

func (e *Entry) key() string { return e.Author + "/" + e.Name }

// Versions returns every known version, newest-first, regardless of
// status, used by V1 lookups and by tooling that needs full history.
func (e *Entry) Versions() []pgsolver.Version {
	out := make([]pgsolver.Version, len(e.versions))
	for i, vs := range e.versions {
		out[i] = vs.v
	}
	return out
}

// ValidVersions returns only StatusValid versions, newest-first, the
// candidate set for new installs or upgrades under the V2 protocol.
func (e *Entry) ValidVersions() []pgsolver.Version {
	var out []pgsolver.Version
	for _, vs := range e.versions {
		if vs.status == StatusValid {
			out = append(out, vs.v)
		}
	}
	return out
}

// StatusOf returns the status of v within e, defaulting to StatusValid if
// v is unknown (this can only happen for a caller bug; V1 registries never
// set anything but StatusValid).
func (e *Entry) StatusOf(v pgsolver.Version) Status {
	for _, vs := range e.versions {
		if vs.v.Equal(v) {
			return vs.status
		}
	}
	return StatusValid
}

func (e *Entry) has(v pgsolver.Version) bool {
	for _, vs := range e.versions {
		if vs.v.Equal(v) {
			return true
		}
	}
	return false
}

// insertSorted inserts v (with status) keeping e.versions newest-first and
// without duplicates. Returns false if v was already present.
func (e *Entry) insertSorted(v pgsolver.Version, status Status) bool {
	if e.has(v) {
		return false
	}
	idx := sort.Search(len(e.versions), func(i int) bool {
		return e.versions[i].v.Less(v) // first index whose version is < v
	})
	e.versions = append(e.versions, versionStatus{})
	copy(e.versions[idx+1:], e.versions[idx:])
	e.versions[idx] = versionStatus{v: v, status: status}
	return true
}

func (e *Entry) remove(v pgsolver.Version) bool {
	for i, vs := range e.versions {
		if vs.v.Equal(v) {
			e.versions = append(e.versions[:i], e.versions[i+1:]...)
			return true
		}
	}
	return false
}

// MutationResult reports the outcome of a mutating registry call.
type MutationResult uint8

const (
	Inserted MutationResult = iota
	AlreadyPresent
	Removed
	NotPresent
)

// Registry is the in-memory, ordered collection of Entries. Package-level
// Load/Write functions handle the two wire formats; Registry itself is
// format-agnostic.
type Registry struct {
	entries    map[string]*Entry
	order      []string // author/name keys, kept sorted by sortEntries
	SinceCount uint64
	ETag       string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Entries returns all entries in current (sorted) order.
func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, len(r.order))
	for i, k := range r.order {
		out[i] = r.entries[k]
	}
	return out
}

// Lookup returns the entry for (author, name), if any.
func (r *Registry) Lookup(author, name string) (*Entry, bool) {
	e, ok := r.entries[author+"/"+name]
	return e, ok
}

// AddVersion creates the entry if absent, inserts newest-first if the
// version is new, and is a no-op (AlreadyPresent) if it's already there.
// bumpSince increments SinceCount by one when true.
func (r *Registry) AddVersion(author, name string, v pgsolver.Version, bumpSince bool) MutationResult {
	return r.addVersionStatus(author, name, v, StatusValid, bumpSince)
}

func (r *Registry) addVersionStatus(author, name string, v pgsolver.Version, status Status, bumpSince bool) MutationResult {
	key := author + "/" + name
	e, ok := r.entries[key]
	if !ok {
		e = &Entry{Author: author, Name: name}
		r.entries[key] = e
		r.insertSortedKey(key)
	}
	if !e.insertSorted(v, status) {
		return AlreadyPresent
	}
	if bumpSince {
		r.SinceCount++
	}
	return Inserted
}

// RemoveVersion finds and removes; if dropEmptyEntry is set and this was
// the last version, the entry itself is deleted.
func (r *Registry) RemoveVersion(author, name string, v pgsolver.Version, dropEmptyEntry bool) MutationResult {
	key := author + "/" + name
	e, ok := r.entries[key]
	if !ok {
		return NotPresent
	}
	if !e.remove(v) {
		return NotPresent
	}
	if dropEmptyEntry && len(e.versions) == 0 {
		delete(r.entries, key)
		r.removeKey(key)
	}
	return Removed
}

// SetStatus flips the status of an existing version in place. It is a
// status change, not a removal, so since-count bookkeeping is untouched.
// Returns false when (author, name, v) is unknown.
func (r *Registry) SetStatus(author, name string, v pgsolver.Version, status Status) bool {
	e, ok := r.entries[author+"/"+name]
	if !ok {
		return false
	}
	for i := range e.versions {
		if e.versions[i].v.Equal(v) {
			e.versions[i].status = status
			return true
		}
	}
	return false
}

// PruneWithdrawn marks every version of (author, name) currently flagged
// deprecated as withdrawn, removing it from the install-candidate set
// (ValidVersions) without deleting its history. Returns how many versions
// changed status.
func (r *Registry) PruneWithdrawn(author, name string) int {
	e, ok := r.entries[author+"/"+name]
	if !ok {
		return 0
	}
	n := 0
	for i := range e.versions {
		if e.versions[i].status == StatusDeprecated {
			e.versions[i].status = StatusWithdrawn
			n++
		}
	}
	return n
}

// SortEntries enforces the total order on entries by (author, name)
// lexicographic. Entries are already sorted newest-first internally by
// construction.
func (r *Registry) SortEntries() {
	sort.Strings(r.order)
}

func (r *Registry) insertSortedKey(key string) {
	idx := sort.SearchStrings(r.order, key)
	r.order = append(r.order, "")
	copy(r.order[idx+1:], r.order[idx:])
	r.order[idx] = key
}

func (r *Registry) removeKey(key string) {
	idx := sort.SearchStrings(r.order, key)
	if idx < len(r.order) && r.order[idx] == key {
		r.order = append(r.order[:idx], r.order[idx+1:]...)
	}
}

// IncrementalApply accepts a list of "author/name@version" strings,
// inserts each idempotently, and adds the list's length, not the count of
// newly-inserted entries, to SinceCount. The increment counting received
// entries, even when some were already known, is the wire contract; a
// server's cursor tracks what it sent, not what was new to us.
func (r *Registry) IncrementalApply(entries []string) error {
	n := uint64(len(entries))
	if r.SinceCount > ^uint64(0)-n {
		return errOverflow
	}
	// Parse everything before mutating anything, so a malformed entry
	// partway through the list leaves the registry untouched.
	type parsed struct {
		author, name string
		v            pgsolver.Version
	}
	batch := make([]parsed, 0, len(entries))
	for _, s := range entries {
		author, name, v, err := parseSinceEntry(s)
		if err != nil {
			return err
		}
		batch = append(batch, parsed{author: author, name: name, v: v})
	}
	for _, p := range batch {
		r.addVersionStatus(p.author, p.name, p.v, StatusValid, false)
	}
	r.SinceCount += n
	return nil
}
