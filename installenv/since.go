package installenv

import (
	"encoding/json"
	"net/http"

	"github.com/elm-wrap/wrap/registry"
	"github.com/pkg/errors"
)

// SinceFetcher abstracts the V1 /since HTTP round trip so it can be faked
// in tests; production wiring hits the real registry host.
type SinceFetcher func(client *http.Client, baseURL string, n uint64) ([]string, bool, error)

// DefaultSinceFetcher issues GET <baseURL>/since?n=<n> and decodes the
// JSON array of "author/name@version" strings. A server-reported reset is
// signaled out of band by the driver wrapping this; here a reset surfaces
// as a non-nil error the caller can inspect.
var DefaultSinceFetcher SinceFetcher = func(client *http.Client, baseURL string, n uint64) ([]string, bool, error) {
	resp, err := client.Get(baseURL + "/since?n=" + formatUint(n))
	if err != nil {
		return nil, false, errors.Wrap(err, "requesting /since")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false, errors.Errorf("/since: unexpected status %s", resp.Status)
	}
	var entries []string
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, false, errors.Wrap(err, "decoding /since response")
	}
	return entries, false, nil
}

func formatUint(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Refresh performs the "/since" incremental sync: send the stored
// since_count, apply the response via registry.IncrementalApply, and write
// the registry back. When the server reports a reset, local state is
// cleared so the caller can re-download from scratch.
func (e *Environment) Refresh(fetch SinceFetcher, baseURL string) error {
	if e.Offline {
		return errors.New("cannot refresh: environment is offline")
	}
	entries, reset, err := fetch(e.HTTP, baseURL, e.Registry.SinceCount)
	if err != nil {
		return err
	}
	if reset {
		old := e.Registry
		e.Registry = registry.New()
		e.Registry.ETag = old.ETag
		return nil
	}
	if err := e.Registry.IncrementalApply(entries); err != nil {
		return err
	}
	return e.persistRegistry()
}

// PersistRegistry writes the in-memory registry back to disk in the
// active protocol's format. Callers that mutate e.Registry directly (the
// local-dev overlay's version inserts and removals) use this to keep the
// on-disk copy in step.
func (e *Environment) PersistRegistry() error { return e.persistRegistry() }

func (e *Environment) persistRegistry() error {
	switch e.Protocol {
	case ProtocolV1:
		return registry.WriteV1(e.registryPath, e.Registry)
	default:
		return registry.WriteV2(e.registryPath, e.Registry, e.v2Meta)
	}
}
