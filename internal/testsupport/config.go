package testsupport

import (
	"path/filepath"
	"testing"

	"darkroom/internal/config"
)

// ConfigOption adjusts the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig returns the default configuration with every path moved under
// a per-test temp directory and short registry lock timings.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		RegistryPath: filepath.Join(root, "state", "registry.json"),
		DataRoot:     filepath.Join(root, "batches"),
		LogDir:       filepath.Join(root, "logs"),
		HistoryPath:  filepath.Join(root, "state", "history.db"),
	}
	cfg.Registry = config.Registry{LockTimeoutSeconds: 2, LockRetryMillis: 10}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithStrictMode makes new batches treat validation warnings as errors.
func WithStrictMode() ConfigOption {
	return func(cfg *config.Config) { cfg.Pipeline.StrictMode = true }
}

// BaseDir returns the temp directory NewConfig placed the paths under.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataRoot)
}
