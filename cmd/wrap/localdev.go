package main

import (
	"flag"

	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/pkg/errors"
)

const localDevRegisterLongHelp = `
Register a local source tree as a live override for a package,
symlinking it into ELM_HOME and recording the override so
refresh-dependents/prune-dependents can track consumers.
`

type localDevRegisterCommand struct{}

func (c *localDevRegisterCommand) Name() string      { return "local-dev-register" }
func (c *localDevRegisterCommand) Args() string      { return "<author/name> <version> <source-path>" }
func (c *localDevRegisterCommand) ShortHelp() string { return "Register a local-dev package override" }
func (c *localDevRegisterCommand) LongHelp() string  { return localDevRegisterLongHelp }
func (c *localDevRegisterCommand) Register(fs *flag.FlagSet) {}

func (c *localDevRegisterCommand) Run(wctx *wrapContext, args []string) error {
	if len(args) != 3 {
		return errors.New("local-dev-register takes author/name, version, and source-path")
	}
	author, name, err := splitAuthorName(args[0])
	if err != nil {
		return err
	}
	v, err := pgsolver.ParseVersion(args[1])
	if err != nil {
		return err
	}
	if err := wctx.localdev.Register(author, name, v, args[2]); err != nil {
		return err
	}
	return wctx.env.PersistRegistry()
}

const localDevUnregisterLongHelp = `
Remove a local-dev override: deletes the ELM_HOME symlink, the
tracking subtree, and the local-dev text registry block.
`

type localDevUnregisterCommand struct{}

func (c *localDevUnregisterCommand) Name() string { return "local-dev-unregister" }
func (c *localDevUnregisterCommand) Args() string { return "<author/name> <version>" }
func (c *localDevUnregisterCommand) ShortHelp() string {
	return "Remove a local-dev package override"
}
func (c *localDevUnregisterCommand) LongHelp() string { return localDevUnregisterLongHelp }
func (c *localDevUnregisterCommand) Register(fs *flag.FlagSet) {}

func (c *localDevUnregisterCommand) Run(wctx *wrapContext, args []string) error {
	if len(args) != 2 {
		return errors.New("local-dev-unregister takes author/name and version")
	}
	author, name, err := splitAuthorName(args[0])
	if err != nil {
		return err
	}
	v, err := pgsolver.ParseVersion(args[1])
	if err != nil {
		return err
	}
	if err := wctx.localdev.Unregister(author, name, v); err != nil {
		return err
	}
	return wctx.env.PersistRegistry()
}
