package installenv

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/elm-wrap/wrap/cache"
	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/pkg/errors"
)

// Provider adapts an Environment's cache + registry into the pgsolver
// dependency-provider contract: a thin adapter in front of the real source
// of truth that tailors lookups for one solve run, including its own local
// version-list cache.
type Provider struct {
	Env      *Environment
	Interner *pgsolver.Interner

	vlists map[pgsolver.PackageID][]pgsolver.Version
}

// NewProvider returns a Provider backed by env, interning package names
// through in.
func NewProvider(env *Environment, in *pgsolver.Interner) *Provider {
	return &Provider{Env: env, Interner: in, vlists: make(map[pgsolver.PackageID][]pgsolver.Version)}
}

// Versions implements pgsolver.Provider.Versions: for the synthetic root,
// the single synthetic version; otherwise the
// registry entry's versions, newest-first, filtered to valid-status
// versions under V2 (V1 entries carry no status and are all implicitly
// valid).
func (p *Provider) Versions(pkg pgsolver.PackageID) ([]pgsolver.Version, error) {
	if pkg == pgsolver.RootID {
		return []pgsolver.Version{pgsolver.RootVersion}, nil
	}
	if vl, ok := p.vlists[pkg]; ok {
		return vl, nil
	}

	name := p.Interner.Lookup(pkg)
	entry, ok := p.Env.Registry.Lookup(name.Author, name.Name)
	if !ok {
		p.vlists[pkg] = nil
		return nil, nil
	}

	var versions []pgsolver.Version
	if p.Env.Protocol == ProtocolV2 {
		versions = entry.ValidVersions()
	} else {
		versions = entry.Versions()
	}
	p.vlists[pkg] = versions
	return versions, nil
}

// elmJSON is the subset of a package's elm.json this core reads: its
// declared dependencies. Everything in the cache is a package-type
// manifest, whose dependencies field is a flat name-to-constraint map.
// Fields beyond "dependencies" (exposed-modules, license, summary, ...)
// belong to the compiler's own manifest reader.
type elmJSON struct {
	Dependencies map[string]string `json:"dependencies"`
}

// DependenciesOf implements pgsolver.Provider.DependenciesOf: compute the
// cache path for (author, name, version), read its elm.json, and parse
// each declared constraint string "M.N.P <= v < M.N.P" into a
// VersionRange. If the manifest is missing and the environment is online,
// attempt one download; if still missing or unreadable, report zero
// dependencies, so the solver treats that version as having none.
func (p *Provider) DependenciesOf(pkg pgsolver.PackageID, v pgsolver.Version) ([]pgsolver.Dependency, error) {
	if pkg == pgsolver.RootID {
		return nil, nil
	}
	name := p.Interner.Lookup(pkg)
	path := filepath.Join(p.Env.Cache.PackagePath(name.Author, name.Name, v), "elm.json")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !p.Env.Offline {
		if derr := p.Env.Cache.Download(name.Author, name.Name, v, cache.DownloadOpts{IgnoreHash: p.Env.IgnoreHash}); derr == nil {
			data, err = os.ReadFile(path)
		}
	}
	if err != nil {
		return nil, nil
	}

	var doc elmJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing elm.json for %s %s", name, v)
	}

	deps := make([]pgsolver.Dependency, 0, len(doc.Dependencies))
	keys := make([]string, 0, len(doc.Dependencies))
	for k := range doc.Dependencies {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic iteration regardless of JSON object order
	for _, depName := range keys {
		r, err := parseConstraint(doc.Dependencies[depName])
		if err != nil {
			return nil, errors.Wrapf(err, "parsing constraint for %s in %s %s", depName, name, v)
		}
		author, nm, err := splitAuthorSlashName(depName)
		if err != nil {
			return nil, err
		}
		depID := p.Interner.Intern(pgsolver.PackageName{Author: author, Name: nm})
		deps = append(deps, pgsolver.Dependency{Pkg: depID, Range: r})
	}
	return deps, nil
}

func splitAuthorSlashName(s string) (author, name string, err error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", errors.Errorf("malformed dependency name %q: want author/name", s)
}

// parseConstraint parses "M.N.P <= v < M.N.P" into a VersionRange, the
// wire form of a package-side dependency constraint.
func parseConstraint(s string) (pgsolver.VersionRange, error) {
	var loStr, loOp, mid, hiOp, hiStr string
	n, err := fmt.Sscanf(s, "%s %s %s %s %s", &loStr, &loOp, &mid, &hiOp, &hiStr)
	if err != nil || n != 5 || mid != "v" {
		return pgsolver.VersionRange{}, errors.Errorf("malformed constraint %q", s)
	}
	lo, err := pgsolver.ParseVersion(loStr)
	if err != nil {
		return pgsolver.VersionRange{}, err
	}
	hi, err := pgsolver.ParseVersion(hiStr)
	if err != nil {
		return pgsolver.VersionRange{}, err
	}
	loInclusive := loOp == "<="
	hiInclusive := hiOp == "<="
	return pgsolver.VersionRange{
		Lower: pgsolver.VersionBound{V: lo, Inclusive: loInclusive},
		Upper: pgsolver.VersionBound{V: hi, Inclusive: hiInclusive},
	}, nil
}
