package pgsolver

// Dependency is one declared dependency: a package and the range of
// versions of it that are acceptable.
type Dependency struct {
	Pkg   PackageID
	Range VersionRange
}

// Provider is the dependency provider contract: given a package, list its
// versions newest-first; given a (package, version),
// list its dependencies. Implementations must honor the newest-first
// ordering, the solver relies on it both for correctness of "prefer
// newest" and for the fail-fast decision heuristic.
type Provider interface {
	// Versions returns the known versions of pkg, newest-first. For
	// RootID it must return exactly []Version{RootVersion}.
	Versions(pkg PackageID) ([]Version, error)

	// DependenciesOf returns the declared dependencies of pkg at version.
	DependenciesOf(pkg PackageID, version Version) ([]Dependency, error)
}

// memoKey is the key for the per-(pkg,version) dependency memoization
// cache.
type memoKey struct {
	pkg PackageID
	ver Version
}

// memoizedProvider wraps a Provider with a dependency cache and exposes
// hit/miss counters for tests.
type memoizedProvider struct {
	inner Provider
	cache map[memoKey][]Dependency
	hits  int
	miss  int
}

func newMemoizedProvider(p Provider) *memoizedProvider {
	return &memoizedProvider{inner: p, cache: make(map[memoKey][]Dependency)}
}

func (m *memoizedProvider) Versions(pkg PackageID) ([]Version, error) {
	return m.inner.Versions(pkg)
}

func (m *memoizedProvider) DependenciesOf(pkg PackageID, v Version) ([]Dependency, error) {
	k := memoKey{pkg, v}
	if deps, ok := m.cache[k]; ok {
		m.hits++
		return deps, nil
	}
	m.miss++
	deps, err := m.inner.DependenciesOf(pkg, v)
	if err != nil {
		return nil, err
	}
	m.cache[k] = deps
	return deps, nil
}

// Stats reports memoization hit/miss counts.
func (m *memoizedProvider) Stats() (hits, misses int) { return m.hits, m.miss }
