package installenv

import "github.com/elm-wrap/wrap/pgsolver"

// Status is a read-only snapshot of the environment's health: whether the
// registry is known-stale, how many packages are cached vs. missing, and
// how many local-dev overrides are active. Query reports, never mutates.
type Status struct {
	Offline         bool
	RegistryStale   bool
	CachedCount     int
	MissingCount    int
	LocalDevActive  int
}

// Query computes Status for the given set of (author, name, version)
// triples a project currently depends on, plus the count of registered
// local-dev overrides (supplied by the localdev package; installenv has no
// direct dependency on it to avoid an import cycle, so the caller passes
// the count in).
func (e *Environment) Query(wanted []Want, localDevActive int) Status {
	st := Status{Offline: e.Offline, LocalDevActive: localDevActive}
	for _, w := range wanted {
		if e.Cache.Exists(w.Author, w.Name, w.Version) {
			st.CachedCount++
		} else {
			st.MissingCount++
		}
	}
	if e.Cache.Meta != nil {
		if _, ok := e.Cache.Meta.LookupETag(e.registryPath); !ok {
			st.RegistryStale = true
		}
	}
	return st
}

// Want is one package/version a project currently depends on, for Status
// reporting purposes.
type Want struct {
	Author, Name string
	Version      pgsolver.Version
}
