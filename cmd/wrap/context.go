package main

import (
	"os"
	"path/filepath"

	"github.com/elm-wrap/wrap/installenv"
	"github.com/elm-wrap/wrap/internal/wrapconfig"
	"github.com/elm-wrap/wrap/localdev"
	"github.com/elm-wrap/wrap/manifest"
	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/pkg/errors"
)

// wrapContext aggregates the pieces every subcommand needs: the project
// root, its manifest, the install environment, a package-name interner
// shared across one process run, and the local-dev manager. It is an
// explicit per-Run value, not a package-level singleton.
type wrapContext struct {
	root         string
	manifestPath string
	env          *installenv.Environment
	interner     *pgsolver.Interner
	localdev     *localdev.Manager
}

func newWrapContext() (*wrapContext, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "getting working directory")
	}

	elmHome := os.Getenv("ELM_HOME")
	if elmHome == "" {
		home, _ := os.UserHomeDir()
		elmHome = filepath.Join(home, ".elm")
	}
	wrapHome := os.Getenv("WRAP_HOME")
	if wrapHome == "" {
		home, _ := os.UserHomeDir()
		wrapHome = filepath.Join(home, ".wrap")
	}

	cfg, err := wrapconfig.Load(filepath.Join(root, "wrap.toml"))
	if err != nil {
		return nil, err
	}
	cfg = wrapconfig.ApplyEnvOverrides(cfg)

	protocol := installenv.ProtocolV2
	registryFile := "index.dat"
	if cfg.RegistryMode == "v1" {
		protocol = installenv.ProtocolV1
		registryFile = "registry.dat"
	}

	env := installenv.New(installenv.Options{
		ElmHome:      elmHome,
		RegistryPath: filepath.Join(elmHome, registryFile),
		Protocol:     protocol,
		RegistryURL:  cfg.MirrorURL,
		Offline:      cfg.Offline || os.Getenv("WRAP_SKIP_REGISTRY_UPDATE") == "1",
	})
	if err := env.Init(); err != nil {
		return nil, err
	}

	return &wrapContext{
		root:         root,
		manifestPath: filepath.Join(root, "elm.json"),
		env:          env,
		interner:     pgsolver.NewInterner(),
		localdev:     localdev.NewManager(elmHome, env.Registry, wrapHome),
	}, nil
}

func (w *wrapContext) readManifest() (*manifest.Application, error) {
	return manifest.ReadApplicationFile(w.manifestPath)
}

func (w *wrapContext) writeManifest(app *manifest.Application) error {
	return manifest.WriteApplicationFile(w.manifestPath, app)
}
