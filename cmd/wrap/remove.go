package main

import (
	"flag"
	"fmt"

	"github.com/pkg/errors"
)

const removeLongHelp = `
Remove a direct dependency from elm.json, then re-solve so any
indirect dependency that becomes unreachable is dropped too.
`

type removeCommand struct {
	dryRun bool
}

func (c *removeCommand) Name() string      { return "remove" }
func (c *removeCommand) Args() string      { return "<author/name>" }
func (c *removeCommand) ShortHelp() string { return "Remove a dependency and re-solve" }
func (c *removeCommand) LongHelp() string  { return removeLongHelp }
func (c *removeCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&c.dryRun, "n", false, "print the plan without writing elm.json")
}

func (c *removeCommand) Run(wctx *wrapContext, args []string) error {
	if len(args) != 1 {
		return errors.New("remove takes exactly one author/name argument")
	}
	target := args[0]

	app, err := wctx.readManifest()
	if err != nil {
		return err
	}
	if !app.Direct.Has(target) {
		return errors.Errorf("%s is not a direct dependency", target)
	}
	app.Direct.Delete(target)
	for _, k := range app.Indirect.Keys() {
		app.Indirect.Delete(k) // rebuilt from scratch below, dropping anything now unreachable
	}

	direct := make(map[string]bool)
	for _, k := range app.Direct.Keys() {
		direct[k] = true
	}

	sol, err := solveApplication(wctx, app, nil)
	if err != nil {
		return err
	}
	plan := applySolution(wctx, app, sol, direct)
	for _, chg := range plan.Changes {
		fmt.Printf("~ %s/%s -> %s\n", chg.Author, chg.Name, chg.NewVersion)
	}

	if c.dryRun {
		return nil
	}
	return wctx.writeManifest(app)
}
