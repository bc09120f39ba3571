package testsupport

import (
	"testing"

	"darkroom/internal/config"
	"darkroom/internal/logging"
	"darkroom/internal/registry"
	"darkroom/internal/runlog"
)

// MustOpenHistory opens a runlog.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *runlog.Store {
	t.Helper()

	store, err := runlog.OpenConfig(cfg)
	if err != nil {
		t.Fatalf("runlog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRegistry returns a registry bound to the config's temp registry path.
func NewRegistry(t testing.TB, cfg *config.Config) *registry.Registry {
	t.Helper()
	return registry.FromConfig(cfg, logging.NewNop())
}
