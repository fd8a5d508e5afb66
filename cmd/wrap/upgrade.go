package main

import (
	"flag"
	"fmt"

	"github.com/elm-wrap/wrap/installenv"
	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/elm-wrap/wrap/upgrade"
	"github.com/pkg/errors"
)

const upgradeLongHelp = `
List available upgrades for the project's direct dependencies. By
default only same-major (minor/patch) candidates are shown; -major
also lists candidates that cross a major version boundary.

Exits with the distinguished "no upgrades available" code when
every direct dependency is already at its latest in-range
version.
`

var errNoUpgrades = errors.New("no upgrades available")

type upgradeCommand struct {
	major bool
}

func (c *upgradeCommand) Name() string      { return "upgrade" }
func (c *upgradeCommand) Args() string      { return "" }
func (c *upgradeCommand) ShortHelp() string { return "List available dependency upgrades" }
func (c *upgradeCommand) LongHelp() string  { return upgradeLongHelp }
func (c *upgradeCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&c.major, "major", false, "also list candidates crossing a major version")
}

func (c *upgradeCommand) Run(wctx *wrapContext, args []string) error {
	app, err := wctx.readManifest()
	if err != nil {
		return err
	}
	provider := installenv.NewProvider(wctx.env, wctx.interner)

	found := false
	for _, key := range app.Direct.Keys() {
		author, name, err := splitAuthorName(key)
		if err != nil {
			return err
		}
		vstr, _ := app.Direct.Get(key)
		current, err := pgsolver.ParseVersion(vstr)
		if err != nil {
			return err
		}
		pkg := wctx.interner.Intern(pgsolver.PackageName{Author: author, Name: name})
		versions, err := provider.Versions(pkg)
		if err != nil {
			return err
		}
		upgrade.SortDescending(versions)

		minors, err := upgrade.MinorCandidates(current, versions)
		if err != nil {
			return err
		}
		for _, cand := range minors {
			found = true
			fmt.Printf("%s: %s -> %s (patch/minor)\n", key, current, cand.Version)
		}
		if c.major {
			majors, err := upgrade.MajorCandidates(current, versions)
			if err != nil {
				return err
			}
			for _, cand := range majors {
				found = true
				fmt.Printf("%s: %s -> %s (major)\n", key, current, cand.Version)
			}
		}
	}

	if !found {
		return errNoUpgrades
	}
	return nil
}
