package main

import (
	"fmt"

	"github.com/elm-wrap/wrap/installenv"
	"github.com/elm-wrap/wrap/manifest"
	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/pkg/errors"
)

// solveApplication runs the solver against wctx's manifest, with extra
// root dependencies (e.g. a package being newly added) layered on top of
// the manifest's existing direct dependencies. It returns the resolved
// version for every package reachable from the root.
func solveApplication(wctx *wrapContext, app *manifest.Application, extra []pgsolver.Dependency) (*pgsolver.Solution, error) {
	provider := installenv.NewProvider(wctx.env, wctx.interner)

	var rootDeps []pgsolver.Dependency
	for _, key := range app.Direct.Keys() {
		author, name, err := splitAuthorName(key)
		if err != nil {
			return nil, err
		}
		vstr, _ := app.Direct.Get(key)
		v, err := pgsolver.ParseVersion(vstr)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing direct dependency %s", key)
		}
		pkg := wctx.interner.Intern(pgsolver.PackageName{Author: author, Name: name})
		rootDeps = append(rootDeps, pgsolver.Dependency{Pkg: pkg, Range: pgsolver.Exact(v)})
	}
	rootDeps = append(rootDeps, extra...)

	solver := pgsolver.NewSolver(wctx.interner, provider, pgsolver.Options{})
	sol, err := solver.Solve(rootDeps)
	if err != nil {
		if nse, ok := err.(*pgsolver.NoSolutionError); ok {
			return nil, errors.New(nse.Explain())
		}
		return nil, err
	}
	return sol, nil
}

func splitAuthorName(s string) (author, name string, err error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("malformed package name %q: want author/name", s)
}

// applySolution writes the solved versions for pkgs back into app.Direct
// (for direct) or app.Indirect (for the rest) and returns the InstallPlan
// describing the delta from the previous Direct/Indirect entries.
func applySolution(wctx *wrapContext, app *manifest.Application, sol *pgsolver.Solution, direct map[string]bool) *manifest.InstallPlan {
	plan := &manifest.InstallPlan{}
	for pkg, v := range sol.Versions {
		name := wctx.interner.Lookup(pkg)
		key := name.String()
		old, hadOld := app.Direct.Get(key)
		if !hadOld {
			old, hadOld = app.Indirect.Get(key)
		}

		if direct[key] {
			app.Direct.Set(key, v.String())
			app.Indirect.Delete(key)
		} else if !app.Direct.Has(key) {
			app.Indirect.Set(key, v.String())
		}

		if !hadOld || old != v.String() {
			plan.Changes = append(plan.Changes, manifest.PackageChange{
				Author: name.Author, Name: name.Name, OldVersion: old, NewVersion: v.String(),
			})
		}
	}
	return plan
}
