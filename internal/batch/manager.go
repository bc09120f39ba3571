package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"darkroom/internal/batchconfig"
	"darkroom/internal/config"
	"darkroom/internal/failure"
	"darkroom/internal/logging"
	"darkroom/internal/processing"
	"darkroom/internal/registry"
)

// ConfigFileName is the batch configuration file inside a data directory.
const ConfigFileName = "batch.yaml"

// Manager creates and opens batches.
type Manager struct {
	cfg    *config.Config
	reg    *registry.Registry
	logger *slog.Logger
}

// NewManager constructs a Manager.
func NewManager(cfg *config.Config, reg *registry.Registry, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		reg:    reg,
		logger: logging.NewComponentLogger(logger, "batch"),
	}
}

// Registry returns the registry the manager writes to.
func (m *Manager) Registry() *registry.Registry {
	return m.reg
}

// Handle is an opened batch.
type Handle struct {
	Batch  registry.Batch
	Config *batchconfig.Config
	Report batchconfig.LoadReport
	Paths  processing.Paths
}

// Context builds a processing context for one run over the batch.
func (h *Handle) Context(opts ...processing.Option) *processing.Context {
	return processing.New(h.Batch.ID, h.Config, h.Paths, opts...)
}

// InitOptions describes a new batch.
type InitOptions struct {
	Name string
	// DataDir defaults to a directory named after the batch under the
	// configured data root.
	DataDir   string
	StepCount int
	// StrictMode overrides the configured pipeline default when set.
	StrictMode *bool
	// StepSettings seeds step_configurations.step<N>.
	StepSettings map[int]map[string]any
}

// Init creates or adopts a batch data directory and registers it. An
// existing configuration file is kept as is.
func (m *Manager) Init(ctx context.Context, opts InitOptions) (*Handle, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, failure.Wrap(failure.ErrValidation, "batch", "init", "batch name is required", nil)
	}
	dataDir := strings.TrimSpace(opts.DataDir)
	if dataDir == "" {
		dataDir = filepath.Join(m.cfg.Paths.DataRoot, Slug(name))
	}
	dataDir, err := config.ExpandPath(dataDir)
	if err != nil {
		return nil, failure.Wrap(failure.ErrValidation, "batch", "init", "data directory", err)
	}

	paths := processing.NewPaths(dataDir)
	if err := paths.EnsureStandard(); err != nil {
		return nil, failure.Wrap(failure.ErrExecution, "batch", "init", "create data directory", err)
	}

	cfgPath := filepath.Join(dataDir, ConfigFileName)
	batchCfg, report, err := m.initConfig(cfgPath, name, dataDir, opts)
	if err != nil {
		return nil, err
	}

	id, err := m.reg.Register(ctx, name, dataDir, cfgPath)
	if err != nil {
		return nil, err
	}
	record, err := m.reg.Get(id)
	if err != nil {
		return nil, err
	}
	m.logger.Info("batch initialised",
		logging.String(logging.FieldEventType, "batch_init"),
		logging.String(logging.FieldBatchID, id),
		logging.String("name", record.Name),
		logging.String("data_directory", dataDir),
		logging.Bool("config_existed", report.Exists))
	return &Handle{Batch: record, Config: batchCfg, Report: report, Paths: paths}, nil
}

func (m *Manager) initConfig(path, name, dataDir string, opts InitOptions) (*batchconfig.Config, batchconfig.LoadReport, error) {
	loadOpts := []batchconfig.Option{batchconfig.WithLogger(m.logger)}
	if opts.StepCount > 0 {
		loadOpts = append(loadOpts, batchconfig.WithStepCount(opts.StepCount))
	}

	if _, err := os.Stat(path); err == nil {
		cfg, report, err := batchconfig.Load(path, loadOpts...)
		if err != nil {
			return nil, report, err
		}
		if report.Corrupt {
			return nil, report, failure.Wrap(failure.ErrConfigCorruption, "batch", "init",
				fmt.Sprintf("existing %s is unreadable; backup at %s", path, report.BackupPath), nil)
		}
		return cfg, report, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, batchconfig.LoadReport{}, failure.Wrap(failure.ErrExecution, "batch", "init", path, err)
	}

	cfg := batchconfig.New(path, loadOpts...)
	if err := cfg.Initialise(name, dataDir, time.Now()); err != nil {
		return nil, batchconfig.LoadReport{}, err
	}
	strict := m.cfg.Pipeline.StrictMode
	if opts.StrictMode != nil {
		strict = *opts.StrictMode
	}
	if err := cfg.Set(batchconfig.KeyStrictMode, strict); err != nil {
		return nil, batchconfig.LoadReport{}, err
	}
	for n, settings := range opts.StepSettings {
		for key, value := range settings {
			if err := cfg.Set(batchconfig.StepConfigKey(n)+"."+key, value); err != nil {
				return nil, batchconfig.LoadReport{}, err
			}
		}
	}
	if err := cfg.Save(); err != nil {
		return nil, batchconfig.LoadReport{}, err
	}
	return cfg, batchconfig.LoadReport{Path: path}, nil
}

// Open resolves ref (an id or unique id prefix), loads the batch
// configuration and records the access in the registry.
func (m *Manager) Open(ctx context.Context, ref string, opts ...batchconfig.Option) (*Handle, error) {
	record, err := m.reg.Resolve(ref)
	if err != nil {
		return nil, err
	}
	opts = append([]batchconfig.Option{batchconfig.WithLogger(m.logger)}, opts...)
	cfg, report, err := batchconfig.Load(record.ConfigPath, opts...)
	if err != nil {
		return nil, err
	}
	if !report.Exists || report.Corrupt {
		logging.WarnWithContext(m.logger, "batch configuration fell back to defaults", "batch_config_defaults",
			logging.String(logging.FieldBatchID, record.ID),
			logging.String("config_path", record.ConfigPath),
			logging.Bool("corrupt", report.Corrupt),
			logging.String("backup_path", report.BackupPath),
			logging.String(logging.FieldErrorHint, "restore the configuration file or re-run steps"),
			logging.String(logging.FieldImpact, "all steps appear incomplete"))
	}
	if err := m.reg.Touch(ctx, record.ID); err != nil {
		return nil, err
	}
	if refreshed, err := m.reg.Get(record.ID); err == nil {
		record = refreshed
	}
	return &Handle{
		Batch:  record,
		Config: cfg,
		Report: report,
		Paths:  processing.NewPaths(record.DataDirectory),
	}, nil
}

// SyncStatus marks an active batch completed once every step in 1..steps is
// complete, and moves a completed batch back to active when one is not.
func (m *Manager) SyncStatus(ctx context.Context, h *Handle, steps int) (registry.Status, error) {
	if steps > 0 {
		h.Config.SetStepCount(steps)
	}
	_, incomplete := h.Config.NextIncompleteStep()
	target := h.Batch.Status
	switch {
	case !incomplete && h.Batch.Status == registry.StatusActive:
		target = registry.StatusCompleted
	case incomplete && h.Batch.Status == registry.StatusCompleted:
		target = registry.StatusActive
	}
	if target == h.Batch.Status {
		return target, nil
	}
	if err := m.reg.UpdateStatus(ctx, h.Batch.ID, target); err != nil {
		return h.Batch.Status, err
	}
	h.Batch.Status = target
	return target, nil
}

// Slug converts a batch name into a directory name.
func Slug(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "batch"
	}
	return out
}
