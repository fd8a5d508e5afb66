package installenv

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/elm-wrap/wrap/registry"
)

func TestRefreshAppliesSinceEntriesAndPersists(t *testing.T) {
	elmHome := t.TempDir()
	path := filepath.Join(elmHome, "registry.dat")
	if err := registry.WriteV1(path, registry.New()); err != nil {
		t.Fatal(err)
	}

	env := New(Options{
		ElmHome:      elmHome,
		RegistryPath: path,
		Protocol:     ProtocolV1,
		Offline:      true,
	})
	if err := env.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer env.Free()
	env.Offline = false

	var requestedSince uint64
	fake := func(client *http.Client, baseURL string, n uint64) ([]string, bool, error) {
		requestedSince = n
		return []string{"elm/core@1.0.0", "elm/html@1.0.0"}, false, nil
	}

	if err := env.Refresh(fake, "https://registry.test.invalid"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if requestedSince != 0 {
		t.Errorf("first refresh should send since_count 0, sent %d", requestedSince)
	}
	if env.Registry.SinceCount != 2 {
		t.Errorf("since_count after refresh: got %d, want 2", env.Registry.SinceCount)
	}
	if _, ok := env.Registry.Lookup("elm", "core"); !ok {
		t.Error("expected elm/core to be applied")
	}

	// The write-back is observable by reloading the file fresh.
	reloaded, err := registry.LoadV1(path)
	if err != nil {
		t.Fatalf("LoadV1 after refresh: %v", err)
	}
	if reloaded.SinceCount != 2 {
		t.Errorf("persisted since_count: got %d, want 2", reloaded.SinceCount)
	}
	if _, ok := reloaded.Lookup("elm", "html"); !ok {
		t.Error("expected elm/html to be persisted")
	}
}

func TestRefreshServerResetClearsLocalState(t *testing.T) {
	elmHome := t.TempDir()
	path := filepath.Join(elmHome, "registry.dat")

	seed := registry.New()
	seed.AddVersion("elm", "core", mustV(t, "1.0.0"), true)
	if err := registry.WriteV1(path, seed); err != nil {
		t.Fatal(err)
	}

	env := New(Options{
		ElmHome:      elmHome,
		RegistryPath: path,
		Protocol:     ProtocolV1,
		Offline:      true,
	})
	if err := env.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer env.Free()
	env.Offline = false

	reset := func(client *http.Client, baseURL string, n uint64) ([]string, bool, error) {
		return nil, true, nil
	}
	if err := env.Refresh(reset, "https://registry.test.invalid"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(env.Registry.Entries()) != 0 {
		t.Error("a server reset should clear local registry state")
	}
}

func TestRefreshWhileOfflineFails(t *testing.T) {
	env := newTestEnv(t)
	err := env.Refresh(DefaultSinceFetcher, "https://registry.test.invalid")
	if err == nil {
		t.Fatal("expected an error refreshing while offline")
	}
}
