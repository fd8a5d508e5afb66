package localdev

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/elm-wrap/wrap/installenv"
	"github.com/elm-wrap/wrap/internal/wraplog"
	"github.com/elm-wrap/wrap/manifest"
	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// Tracking is the bidirectional tracking directory: keyed by
// (author, name, version), each holding a file per consuming application
// whose name is a stable hash of that application's absolute manifest path
// and whose contents are that path.
type Tracking struct {
	Root string // WRAP_HOME/local-dev
}

// NewTracking returns a Tracking rooted under wrapHome.
func NewTracking(wrapHome string) *Tracking {
	return &Tracking{Root: filepath.Join(wrapHome, "local-dev")}
}

func consumerHash(absManifestPath string) string {
	sum := sha1.Sum([]byte(absManifestPath))
	return hex.EncodeToString(sum[:])
}

func (t *Tracking) versionDir(author, name string, v pgsolver.Version) string {
	return filepath.Join(t.Root, author, name, v.String())
}

// Track records that consumerManifestPath depends on (author, name, v).
// Creation is idempotent: re-tracking the same consumer overwrites its
// entry with the same content.
func (t *Tracking) Track(author, name string, v pgsolver.Version, consumerManifestPath string) error {
	abs, err := filepath.Abs(consumerManifestPath)
	if err != nil {
		return errors.Wrapf(err, "resolving %s to an absolute path", consumerManifestPath)
	}
	dir := t.versionDir(author, name, v)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating tracking directory %s", dir)
	}
	file := filepath.Join(dir, consumerHash(abs))
	tmp := file + ".tmp"
	if err := os.WriteFile(tmp, []byte(abs), 0o644); err != nil {
		return errors.Wrapf(err, "writing tracking entry %s", tmp)
	}
	return os.Rename(tmp, file)
}

// Untrack removes the tracking entry for consumerManifestPath against
// (author, name, v). Deletion is idempotent: removing an absent entry is
// not an error.
func (t *Tracking) Untrack(author, name string, v pgsolver.Version, consumerManifestPath string) error {
	abs, err := filepath.Abs(consumerManifestPath)
	if err != nil {
		return errors.Wrapf(err, "resolving %s to an absolute path", consumerManifestPath)
	}
	file := filepath.Join(t.versionDir(author, name, v), consumerHash(abs))
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing tracking entry %s", file)
	}
	return nil
}

// Consumers enumerates the absolute manifest paths of every application
// tracked as depending on (author, name, v). Enumeration of an
// never-tracked package returns an empty slice, not an error.
func (t *Tracking) Consumers(author, name string, v pgsolver.Version) ([]string, error) {
	dir := t.versionDir(author, name, v)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading tracking directory %s", dir)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			wraplog.Vlogf("skipping unreadable tracking entry %s: %v", e.Name(), err)
			continue
		}
		out = append(out, string(data))
	}
	sort.Strings(out)
	return out, nil
}

// PackageKey identifies one tracked (author, name, version) triple.
type PackageKey struct {
	Author, Name string
	Version      pgsolver.Version
}

// TrackedBy is the inverse scan: every local-dev package consumerPath is
// recorded as depending on.
func (t *Tracking) TrackedBy(consumerManifestPath string) ([]PackageKey, error) {
	abs, err := filepath.Abs(consumerManifestPath)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s to an absolute path", consumerManifestPath)
	}
	want := consumerHash(abs)

	if _, err := os.Stat(t.Root); os.IsNotExist(err) {
		return nil, nil
	}

	var out []PackageKey
	err = godirwalk.Walk(t.Root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() || de.Name() != want {
				return nil
			}
			rel, rerr := filepath.Rel(t.Root, osPathname)
			if rerr != nil {
				return nil
			}
			parts := splitPath(rel)
			if len(parts) != 4 { // author/name/version/hash
				return nil
			}
			v, perr := pgsolver.ParseVersion(parts[2])
			if perr != nil {
				return nil
			}
			out = append(out, PackageKey{Author: parts[0], Name: parts[1], Version: v})
			return nil
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking tracking directory %s", t.Root)
	}
	return out, nil
}

func splitPath(rel string) []string {
	return splitSlash(filepath.ToSlash(rel))
}

func splitSlash(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// Unregister removes the tracking subtree for (author, name, v) entirely -
// used when a local-dev package itself is unregistered.
func (t *Tracking) Unregister(author, name string, v pgsolver.Version) error {
	dir := t.versionDir(author, name, v)
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "removing tracking subtree %s", dir)
	}
	return nil
}

func splitAuthorSlashNamePublic(s string) (author, name string, err error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", errors.Errorf("malformed dependency name %q: want author/name", s)
}

// parseConstraintPublic parses "M.N.P <= v < M.N.P" into a VersionRange,
// duplicated from installenv's unexported parser since both packages need
// it and neither should import the other just for this.
func parseConstraintPublic(s string) (pgsolver.VersionRange, error) {
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
	return pgsolver.VersionRange{
		Lower: pgsolver.VersionBound{V: lo, Inclusive: loOp == "<="},
		Upper: pgsolver.VersionBound{V: hi, Inclusive: hiOp == "<="},
	}, nil
}

// packageElmJSON is the subset of a package's elm.json this package reads
// to discover its own direct dependencies.
type packageElmJSON struct {
	Dependencies map[string]string `json:"dependencies"`
}

func readPackageDeps(sourceDir string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(sourceDir, "elm.json"))
	if err != nil {
		return nil, errors.Wrapf(err, "reading elm.json under %s", sourceDir)
	}
	var doc packageElmJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing elm.json under %s", sourceDir)
	}
	return doc.Dependencies, nil
}

// RefreshDependents performs the transitive refresh: after a dependency
// is added inside a tracked package, iterate its consumers; for
// each, solve every declared dependency not already in the consumer's
// direct or indirect map on its own, from its declared range, and add each
// version of the result as an indirect entry (bumping it if it changed).
// The consumer's existing entries are not passed to the solver, so the
// chosen versions are not checked against them. Direct entries are never
// demoted. Failures
// are logged and skipped per-consumer; the overall call reports failure
// iff at least one consumer failed.
func (t *Tracking) RefreshDependents(pkg PackageKey, sourceDir string, env *installenv.Environment, in *pgsolver.Interner) error {
	consumers, err := t.Consumers(pkg.Author, pkg.Name, pkg.Version)
	if err != nil {
		return err
	}
	deps, err := readPackageDeps(sourceDir)
	if err != nil {
		return err
	}

	var anyFailed bool
	for _, consumerPath := range consumers {
		if err := t.refreshOneConsumer(consumerPath, deps, env, in); err != nil {
			wraplog.Vlogf("refresh_dependents: consumer %s failed: %v", consumerPath, err)
			anyFailed = true
		}
	}
	if anyFailed {
		return errors.New("refresh_dependents: at least one consumer failed")
	}
	return nil
}

func (t *Tracking) refreshOneConsumer(consumerPath string, deps map[string]string, env *installenv.Environment, in *pgsolver.Interner) error {
	app, err := manifest.ReadApplicationFile(consumerPath)
	if err != nil {
		return err
	}

	provider := installenv.NewProvider(env, in)
	changed := false

	names := make([]string, 0, len(deps))
	for k := range deps {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, depName := range names {
		if app.Direct.Has(depName) || app.Indirect.Has(depName) {
			continue
		}
		author, name, serr := splitAuthorSlashNamePublic(depName)
		if serr != nil {
			return serr
		}
		depID := in.Intern(pgsolver.PackageName{Author: author, Name: name})
		r, perr := parseConstraintPublic(deps[depName])
		if perr != nil {
			return perr
		}

		solver := pgsolver.NewSolver(in, provider, pgsolver.Options{})
		sol, serr := solver.Solve([]pgsolver.Dependency{{Pkg: depID, Range: r}})
		if serr != nil {
			return errors.Wrapf(serr, "solving for %s", depName)
		}
		for id, v := range sol.Versions {
			pn := in.Lookup(id)
			key := pn.String()
			if app.Direct.Has(key) {
				continue // never demote a direct entry
			}
			if cur, ok := app.Indirect.Get(key); !ok || cur != v.String() {
				app.Indirect.Set(key, v.String())
				changed = true
			}
		}
	}

	if !changed {
		return nil
	}
	return manifest.WriteApplicationFile(consumerPath, app)
}

// PruneDependents performs the orphan prune: after a dependency is
// removed inside a tracked package, remove from each
// consumer's indirect map every entry no longer reachable from any of that
// consumer's direct entries.
func (t *Tracking) PruneDependents(pkg PackageKey, env *installenv.Environment) error {
	consumers, err := t.Consumers(pkg.Author, pkg.Name, pkg.Version)
	if err != nil {
		return err
	}
	var anyFailed bool
	for _, consumerPath := range consumers {
		if err := t.pruneOneConsumer(consumerPath, env); err != nil {
			wraplog.Vlogf("prune_dependents: consumer %s failed: %v", consumerPath, err)
			anyFailed = true
		}
	}
	if anyFailed {
		return errors.New("prune_dependents: at least one consumer failed")
	}
	return nil
}

func (t *Tracking) pruneOneConsumer(consumerPath string, env *installenv.Environment) error {
	app, err := manifest.ReadApplicationFile(consumerPath)
	if err != nil {
		return err
	}

	reachable := make(map[string]bool)
	var visit func(key string) error
	visit = func(key string) error {
		if reachable[key] {
			return nil
		}
		reachable[key] = true
		author, name, serr := splitAuthorSlashNamePublic(key)
		if serr != nil {
			return nil // malformed key, nothing to walk further
		}
		verStr, ok := app.Direct.Get(key)
		if !ok {
			verStr, ok = app.Indirect.Get(key)
		}
		if !ok {
			return nil
		}
		v, perr := pgsolver.ParseVersion(verStr)
		if perr != nil {
			return nil
		}
		deps, derr := readPackageDeps(env.Cache.PackagePath(author, name, v))
		if derr != nil {
			return nil // cache miss: treat as a leaf rather than fail the whole walk
		}
		names := make([]string, 0, len(deps))
		for k := range deps {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, dn := range names {
			if err := visit(dn); err != nil {
				return err
			}
		}
		return nil
	}

	for _, k := range app.Direct.Keys() {
		if err := visit(k); err != nil {
			return err
		}
	}

	changed := false
	for _, k := range app.Indirect.Keys() {
		if !reachable[k] {
			app.Indirect.Delete(k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return manifest.WriteApplicationFile(consumerPath, app)
}
