package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"darkroom/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory locations.
type Paths struct {
	RegistryPath string `toml:"registry_path"`
	DataRoot     string `toml:"data_root"`
	LogDir       string `toml:"log_dir"`
	HistoryPath  string `toml:"history_path"`
}

// Registry contains lock timing for the shared batch registry file.
type Registry struct {
	LockTimeoutSeconds int `toml:"lock_timeout_seconds"`
	LockRetryMillis    int `toml:"lock_retry_millis"`
}

// Pipeline contains defaults applied when running steps.
type Pipeline struct {
	StopOnError bool `toml:"stop_on_error"`
	StrictMode  bool `toml:"strict_mode"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for darkroom.
//
// Configuration sections:
//   - Paths: registry file, default batch data root, logs, run history
//   - Registry: lock acquisition timing
//   - Pipeline: stop-on-error and strict validation defaults
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Registry Registry `toml:"registry"`
	Pipeline Pipeline `toml:"pipeline"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The explicit
// path wins over DARKROOM_CONFIG, which wins over the default location. A
// missing file is not an error: defaults are returned with exists false.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config %s: %s", path, strict.String())
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	candidate := strings.TrimSpace(path)
	if candidate == "" {
		candidate = strings.TrimSpace(os.Getenv("DARKROOM_CONFIG"))
	}
	if candidate == "" {
		candidate = defaultConfigPath
	}

	resolved, err := expandPath(candidate)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return resolved, false, nil
	case err != nil:
		return "", false, fmt.Errorf("stat config: %w", err)
	case info.IsDir():
		return "", false, fmt.Errorf("config path %s is a directory", resolved)
	}
	return resolved, true, nil
}

// EnsureDirectories creates directories darkroom writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataRoot, c.Paths.LogDir, filepath.Dir(c.Paths.RegistryPath), filepath.Dir(c.Paths.HistoryPath)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockTimeout returns the bounded wait for the registry lock.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Registry.LockTimeoutSeconds) * time.Second
}

// LockRetry returns the delay between registry lock attempts.
func (c *Config) LockRetry() time.Duration {
	return time.Duration(c.Registry.LockRetryMillis) * time.Millisecond
}

// expandPath resolves a leading ~ to the home directory and returns an
// absolute, cleaned path. "~user" forms are left alone.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimLeft(value[1:], `/\`))
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// ExpandPath applies the same ~ and absolute path rules used for config values.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// CreateSample writes the annotated sample configuration to path. An
// existing file is replaced.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return fileutil.WriteAtomic(path, []byte(sampleConfig), 0o644)
}
