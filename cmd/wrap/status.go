package main

import (
	"flag"
	"fmt"

	"github.com/elm-wrap/wrap/installenv"
	"github.com/elm-wrap/wrap/pgsolver"
)

const statusLongHelp = `
Report whether the project's declared dependencies are cached
locally, whether the registry looks stale, and how many local-dev
overrides are currently active.
`

type statusCommand struct{}

func (c *statusCommand) Name() string               { return "status" }
func (c *statusCommand) Args() string               { return "" }
func (c *statusCommand) ShortHelp() string           { return "Report dependency cache/registry status" }
func (c *statusCommand) LongHelp() string            { return statusLongHelp }
func (c *statusCommand) Register(fs *flag.FlagSet)   {}

func (c *statusCommand) Run(wctx *wrapContext, args []string) error {
	app, err := wctx.readManifest()
	if err != nil {
		return err
	}

	var wanted []installenv.Want
	for _, pm := range []struct{ keys []string }{{app.Direct.Keys()}, {app.Indirect.Keys()}} {
		for _, key := range pm.keys {
			author, name, err := splitAuthorName(key)
			if err != nil {
				return err
			}
			vstr, _ := app.Direct.Get(key)
			if vstr == "" {
				vstr, _ = app.Indirect.Get(key)
			}
			v, err := pgsolver.ParseVersion(vstr)
			if err != nil {
				continue
			}
			wanted = append(wanted, installenv.Want{Author: author, Name: name, Version: v})
		}
	}

	localDevActive := 0
	if blocks, err := wctx.localdev.Text.Load(); err == nil {
		localDevActive = len(blocks)
	}

	st := wctx.env.Query(wanted, localDevActive)
	fmt.Printf("offline: %v\n", st.Offline)
	fmt.Printf("registry stale: %v\n", st.RegistryStale)
	fmt.Printf("cached: %d\n", st.CachedCount)
	fmt.Printf("missing: %d\n", st.MissingCount)
	fmt.Printf("local-dev active: %d\n", st.LocalDevActive)
	return nil
}
