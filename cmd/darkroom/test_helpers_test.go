package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"darkroom/internal/config"
	"darkroom/internal/registry"
	"darkroom/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	sourceDir  string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "home", ".config", "darkroom", "config.toml")
	writeTestConfig(t, configPath, cfg)

	source := filepath.Join(base, "card")
	testsupport.WriteFile(t, filepath.Join(source, "IMG_0001.JPG"), 64)
	testsupport.WriteFile(t, filepath.Join(source, "IMG_0002.jpg"), 128)
	testsupport.WriteFile(t, filepath.Join(source, "IMG_0003.png"), 256)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base, sourceDir: source}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// initBatch creates a batch through the CLI and returns its registry record.
func initBatch(t *testing.T, env *cliTestEnv, name string, extra ...string) registry.Batch {
	t.Helper()
	args := append([]string{"init", name, "--json"}, extra...)
	out, _, err := runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("init %s: %v", name, err)
	}
	var b registry.Batch
	if err := json.Unmarshal([]byte(out), &b); err != nil {
		t.Fatalf("decode init output %q: %v", out, err)
	}
	if b.ID == "" {
		t.Fatalf("init returned empty id: %q", out)
	}
	return b
}

// backdateAccess rewrites a batch's last_accessed in the registry file.
func backdateAccess(t *testing.T, registryPath, id string, at time.Time) {
	t.Helper()
	data, err := os.ReadFile(registryPath)
	if err != nil {
		t.Fatalf("read registry: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode registry: %v", err)
	}
	batches, _ := doc["batches"].(map[string]any)
	entry, ok := batches[id].(map[string]any)
	if !ok {
		t.Fatalf("batch %s not in registry", id)
	}
	entry["last_accessed"] = at.Format(time.RFC3339Nano)
	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(registryPath, out, 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
registry_path = %q
data_root = %q
log_dir = %q
history_path = %q

[registry]
lock_timeout_seconds = %d
lock_retry_millis = %d

[pipeline]
stop_on_error = true

[logging]
level = "error"
`,
		cfg.Paths.RegistryPath,
		cfg.Paths.DataRoot,
		cfg.Paths.LogDir,
		cfg.Paths.HistoryPath,
		cfg.Registry.LockTimeoutSeconds,
		cfg.Registry.LockRetryMillis,
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
