// Package installenv implements the install environment: the aggregation
// of cache, registry, HTTP session, and offline state that every solve and
// install operation runs against.
package installenv

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/elm-wrap/wrap/cache"
	"github.com/elm-wrap/wrap/registry"
	"github.com/elm-wrap/wrap/internal/wraplog"
	"github.com/pkg/errors"
)

// ProtocolMode selects which registry wire format is active.
type ProtocolMode uint8

const (
	ProtocolV1 ProtocolMode = iota
	ProtocolV2
)

// Environment aggregates the cache, the active registry, the HTTP session,
// a known-version counter, and the offline/ignore-hash flags. Its
// lifecycle is create -> Init -> use -> Free.
type Environment struct {
	ElmHome  string
	Protocol ProtocolMode

	Cache    *cache.Cache
	Registry *registry.Registry
	HTTP     *http.Client

	Offline    bool
	IgnoreHash bool

	KnownVersionCount uint64

	registryPath string
	registryURL  string
	v2Meta       registry.V2Meta
}

// Options configure Init.
type Options struct {
	ElmHome      string
	RegistryPath string // path to registry.dat (V1) or index.dat (V2)
	Protocol     ProtocolMode
	RegistryURL  string // used for ETag-gated refresh; empty disables network refresh
	Offline      bool
	IgnoreHash   bool
}

// New constructs an Environment in the "create" lifecycle state: no I/O has
// happened yet.
func New(opts Options) *Environment {
	return &Environment{
		ElmHome:      opts.ElmHome,
		Protocol:     opts.Protocol,
		Offline:      opts.Offline,
		IgnoreHash:   opts.IgnoreHash,
		HTTP:         http.DefaultClient,
		registryPath: opts.RegistryPath,
		registryURL:  opts.RegistryURL,
	}
}

// Init resolves the cache tree, opens or fetches the registry, and runs
// the ETag-gated refresh. It is idempotent: calling it twice is a no-op on
// the second call.
func (e *Environment) Init() error {
	if e.Cache != nil {
		return nil // already initialized
	}

	if err := os.MkdirAll(filepath.Join(e.ElmHome, "packages"), 0o755); err != nil {
		return errors.Wrapf(err, "creating cache directory tree under %s", e.ElmHome)
	}

	mirrorPath := filepath.Join(e.ElmHome, "mirror-manifest.json")
	mirror, err := cache.LoadMirrorManifest(mirrorPath)
	if err != nil {
		return err
	}
	meta, err := cache.OpenMetastore(e.ElmHome)
	if err != nil {
		wraplog.Warnf("metastore unavailable, continuing without it: %v", err)
		meta = nil
	}
	c, err := cache.New(e.ElmHome, mirror, meta)
	if err != nil {
		return err
	}
	e.Cache = c

	reg, err := e.loadOrInitRegistry()
	if err != nil {
		return err
	}
	e.Registry = reg
	e.KnownVersionCount = reg.SinceCount

	if !e.Offline {
		if err := e.refreshETag(); err != nil {
			// Network errors are non-fatal when a local registry exists:
			// remain offline for this operation and warn once.
			wraplog.Warnf("registry refresh failed, continuing offline: %v", err)
			e.Offline = true
		}
	}

	return nil
}

// Free releases the environment's resources (the bolt metastore handle).
func (e *Environment) Free() error {
	if e.Cache != nil && e.Cache.Meta != nil {
		return e.Cache.Meta.Close()
	}
	return nil
}

func (e *Environment) loadOrInitRegistry() (*registry.Registry, error) {
	_, statErr := os.Stat(e.registryPath)
	exists := statErr == nil

	if !exists {
		if e.Offline {
			return registry.New(), nil
		}
		if err := e.downloadFreshRegistry(); err != nil {
			return nil, err
		}
		if _, err := os.Stat(e.registryPath); err != nil {
			// No collaborator delivered a registry file; start from an
			// empty in-memory registry rather than failing Init.
			wraplog.Warnf("no registry at %s, starting empty", e.registryPath)
			return registry.New(), nil
		}
	}

	if e.Protocol == ProtocolV1 {
		return registry.LoadV1(e.registryPath)
	}
	reg, meta, err := registry.LoadV2(e.registryPath)
	if err != nil {
		return nil, err
	}
	e.v2Meta = meta
	return reg, nil
}

func (e *Environment) downloadFreshRegistry() error {
	// The HTTP transport and repository layout for a full registry pull
	// belong to the outer driver; callers supply an already-fetched file
	// at registryPath in the common path, and this helper exists so the
	// absent-and-online case has a single, overridable seam.
	return nil
}

// refreshETag sends the stored ETag; on 304 it does nothing; on 200 it
// replaces the registry atomically and persists the new ETag; on network
// error it keeps the local copy (the caller demotes to offline).
func (e *Environment) refreshETag() error {
	if e.Cache.Meta == nil || e.registryURL == "" {
		return nil // no ETag memoization or no RegistryURL; nothing to gate on
	}
	etag, _ := e.Cache.Meta.LookupETag(e.registryPath)
	fresh, newETag, changed, err := fetchIfChanged(e.HTTP, e.registryURLOrDefault(), etag)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	tmp := e.registryPath + ".refresh.tmp"
	if err := os.WriteFile(tmp, fresh, 0o644); err != nil {
		return errors.Wrap(err, "writing refreshed registry to temp file")
	}
	if err := os.Rename(tmp, e.registryPath); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "renaming refreshed registry into place")
	}
	return e.Cache.Meta.RememberETag(e.registryPath, newETag)
}

func (e *Environment) registryURLOrDefault() string {
	if e.registryURL != "" {
		return e.registryURL
	}
	return "https://elm-wrap.invalid/registry" // no RegistryURL configured; refresh is a no-op target
}

// fetchIfChanged performs the ETag-gated conditional GET. Declared as a
// package-level var so tests can substitute a fake transport without a
// live network.
var fetchIfChanged = func(client *http.Client, url, etag string) (body []byte, newETag string, changed bool, err error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, "", false, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotModified {
		return nil, etag, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", false, errors.Errorf("registry refresh: unexpected status %s", resp.Status)
	}
	buf := make([]byte, 0, 1<<20)
	tmp := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if rerr != nil {
			break
		}
	}
	return buf, resp.Header.Get("ETag"), true, nil
}
