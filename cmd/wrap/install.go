package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/elm-wrap/wrap/localdev"
	"github.com/elm-wrap/wrap/pgsolver"
)

const installLongHelp = `
Resolve and record the project's dependencies. With no arguments,
re-solves against the current elm.json. With "<author>/<name>"
arguments, adds them as new direct dependencies before solving.

Writes the resolved versions back into elm.json's direct/indirect
maps and prints the install plan.
`

type installCommand struct {
	dryRun bool
}

func (c *installCommand) Name() string      { return "install" }
func (c *installCommand) Args() string      { return "[author/name...]" }
func (c *installCommand) ShortHelp() string { return "Resolve and record project dependencies" }
func (c *installCommand) LongHelp() string  { return installLongHelp }
func (c *installCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&c.dryRun, "n", false, "print the plan without writing elm.json")
}

func (c *installCommand) Run(wctx *wrapContext, args []string) error {
	app, err := wctx.readManifest()
	if err != nil {
		return err
	}

	direct := make(map[string]bool)
	for _, k := range app.Direct.Keys() {
		direct[k] = true
	}

	var extra []pgsolver.Dependency
	for _, arg := range args {
		author, name, err := splitAuthorName(arg)
		if err != nil {
			return err
		}
		pkg := wctx.interner.Intern(pgsolver.PackageName{Author: author, Name: name})
		extra = append(extra, pgsolver.Dependency{Pkg: pkg, Range: pgsolver.Any()})
		direct[arg] = true
	}

	sol, err := solveApplication(wctx, app, extra)
	if err != nil {
		return err
	}
	plan := applySolution(wctx, app, sol, direct)

	// Any resolution landing on a local-dev version records this
	// application as a consumer, so edits to the live source tree can be
	// propagated here later.
	if !c.dryRun {
		for pkg, v := range sol.Versions {
			if !localdev.IsLocalDevVersion(v) {
				continue
			}
			name := wctx.interner.Lookup(pkg)
			if err := wctx.localdev.Track.Track(name.Author, name.Name, v, wctx.manifestPath); err != nil {
				return err
			}
		}
	}

	for _, chg := range plan.Changes {
		if chg.OldVersion == "" {
			fmt.Fprintf(os.Stdout, "+ %s/%s %s\n", chg.Author, chg.Name, chg.NewVersion)
		} else {
			fmt.Fprintf(os.Stdout, "~ %s/%s %s -> %s\n", chg.Author, chg.Name, chg.OldVersion, chg.NewVersion)
		}
	}

	if c.dryRun {
		return nil
	}
	return wctx.writeManifest(app)
}
