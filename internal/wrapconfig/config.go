// Package wrapconfig loads the optional project-local wrap.toml override
// file. Environment variables (ELM_HOME, WRAP_HOME, WRAP_*) always take
// precedence; wrap.toml only fills in values the environment leaves
// unset.
package wrapconfig

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Config is the set of settings wrap.toml may override.
type Config struct {
	// RegistryMode selects "v1" (binary) or "v2" (text) registry format.
	RegistryMode string `toml:"registry_mode"`
	// MirrorURL overrides the default package mirror/index host.
	MirrorURL string `toml:"mirror_url"`
	// Offline defaults the install environment to offline mode.
	Offline bool `toml:"offline"`
}

// Load reads path if it exists, returning a zero Config (not an error) when
// it does not, wrap.toml is always optional.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "reading %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, nil
}

// ApplyEnvOverrides layers the WRAP_*/ELM_HOME environment variables on
// top of cfg, with the environment always winning.
func ApplyEnvOverrides(cfg Config) Config {
	if v := os.Getenv("WRAP_REPOSITORY_LOCAL_PATH"); v != "" {
		cfg.MirrorURL = v
	}
	if v := os.Getenv("WRAP_OFFLINE_MODE"); v == "1" || v == "true" {
		cfg.Offline = true
	}
	if v := os.Getenv("WRAP_ALLOW_ELM_ONLINE"); v == "0" || v == "false" {
		cfg.Offline = true
	}
	if cfg.RegistryMode == "" {
		cfg.RegistryMode = "v2"
	}
	return cfg
}
