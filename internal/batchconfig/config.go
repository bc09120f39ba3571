package batchconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"darkroom/internal/failure"
	"darkroom/internal/fileutil"
	"darkroom/internal/logging"
)

const (
	KeyProject            = "project"
	KeyProjectName        = "project.name"
	KeyProjectDataDir     = "project.data_directory"
	KeyProjectCreated     = "project.created"
	KeyStepsCompleted     = "steps_completed"
	KeyStepConfigurations = "step_configurations"
	KeyStrictMode         = "validation.strict_mode"

	corruptSuffix = ".corrupt"
)

// Config is the in-memory tree of one batch configuration store. It is safe
// for concurrent use, although a batch is expected to have a single writer.
type Config struct {
	mu        sync.RWMutex
	root      Value
	path      string
	stepCount int
	logger    *slog.Logger
}

// Option customises Load and New.
type Option func(*Config)

// WithStepCount fixes the number of pipeline steps the batch tracks.
func WithStepCount(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.stepCount = n
		}
	}
}

// WithLogger attaches a logger used for load and save diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// LoadReport describes how Load obtained the configuration.
type LoadReport struct {
	Path       string
	Exists     bool
	Corrupt    bool
	BackupPath string
	Warning    string
}

// New returns a Config seeded with built-in defaults and bound to path.
func New(path string, opts ...Option) *Config {
	c := &Config{path: path, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "batchconfig")
	c.root = defaults(c.stepCount)
	return c
}

// Load reads the store at path. A missing file yields defaults. A file that
// cannot be parsed also yields defaults; it is left in place and copied to
// path+".corrupt" so a later Save cannot destroy it. I/O failures other than
// absence are returned as errors, as is a corrupt file that cannot be backed
// up.
func Load(path string, opts ...Option) (*Config, LoadReport, error) {
	c := New(path, opts...)
	report := LoadReport{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			report.Warning = "configuration file not found; using defaults"
			logging.WarnWithContext(c.logger, "batch configuration missing", "batchconfig_missing",
				logging.String("path", path),
				logging.String(logging.FieldErrorHint, "initialise the batch or restore its config file"),
				logging.String(logging.FieldImpact, "all steps are treated as incomplete"),
			)
			return c, report, nil
		}
		return nil, report, failure.Wrap(failure.ErrExecution, "batchconfig", "read", path, err)
	}
	report.Exists = true

	loaded, parseErr := decode(data)
	if parseErr != nil {
		report.Corrupt = true
		report.Warning = fmt.Sprintf("configuration unreadable (%v); using defaults", parseErr)
		backup := path + corruptSuffix
		if err := fileutil.CopyFile(path, backup); err != nil {
			// Without a backup a later Save would destroy the only copy.
			return nil, report, failure.Wrap(failure.ErrConfigCorruption, "batchconfig", "backup",
				fmt.Sprintf("%s is unreadable and could not be copied to %s", path, backup), err)
		}
		report.BackupPath = backup
		logging.WarnWithContext(c.logger, "batch configuration corrupt", "batchconfig_corrupt",
			logging.String("path", path),
			logging.String("backup_path", report.BackupPath),
			logging.Error(failure.Wrap(failure.ErrConfigCorruption, "batchconfig", "parse", path, parseErr)),
			logging.String(logging.FieldErrorHint, "inspect the backup copy and repair it by hand"),
			logging.String(logging.FieldImpact, "defaults are in effect until the file is repaired"),
		)
		return c, report, nil
	}

	mergeDefaults(loaded, c.root)
	c.root = loaded
	if c.stepCount == 0 {
		c.stepCount = highestStepKey(loaded)
	}
	c.logger.Debug("batch configuration loaded",
		logging.String("path", path),
		logging.Int("step_count", c.stepCount),
	)
	return c, report, nil
}

func decode(data []byte) (Value, error) {
	if strings.TrimSpace(string(data)) == "" {
		return Value{}, errors.New("file is empty")
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Value{}, err
	}
	if raw == nil {
		return Value{}, errors.New("document is not a mapping")
	}
	return FromNative(raw)
}

// Path returns the file the configuration is bound to.
func (c *Config) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Save writes the configuration atomically to its bound path.
func (c *Config) Save() error {
	return c.SaveAs(c.Path())
}

// SaveAs writes the configuration atomically to path and rebinds to it.
func (c *Config) SaveAs(path string) error {
	if strings.TrimSpace(path) == "" {
		return failure.Wrap(failure.ErrConfiguration, "batchconfig", "save", "no path bound", nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := yaml.Marshal(c.root.Native())
	if err != nil {
		return failure.Wrap(failure.ErrExecution, "batchconfig", "encode", path, err)
	}
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return failure.Wrap(failure.ErrExecution, "batchconfig", "save", path, err)
	}
	c.path = path
	c.logger.Debug("batch configuration saved", logging.String("path", path))
	return nil
}

// Lookup returns the value at key and whether it exists.
func (c *Config) Lookup(key string) (Value, bool) {
	parts, err := splitKey(key)
	if err != nil {
		return Value{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := lookupPath(c.root, parts)
	if !ok {
		return Value{}, false
	}
	return v.Clone(), true
}

// Get returns the plain Go value at key, or def when the key is missing.
func (c *Config) Get(key string, def any) any {
	if v, ok := c.Lookup(key); ok {
		return v.Native()
	}
	return def
}

// GetString returns a string at key, or def when missing or not a string.
func (c *Config) GetString(key, def string) string {
	if v, ok := c.Lookup(key); ok {
		if s, ok := v.AsString(); ok {
			return s
		}
	}
	return def
}

// GetInt returns an integer at key, or def when missing or not numeric.
func (c *Config) GetInt(key string, def int) int {
	if v, ok := c.Lookup(key); ok {
		if i, ok := v.AsInt(); ok {
			return int(i)
		}
	}
	return def
}

// GetFloat returns a number at key, or def when missing or not numeric.
func (c *Config) GetFloat(key string, def float64) float64 {
	if v, ok := c.Lookup(key); ok {
		if f, ok := v.AsFloat(); ok {
			return f
		}
	}
	return def
}

// GetBool returns a boolean at key, or def when missing or not a boolean.
func (c *Config) GetBool(key string, def bool) bool {
	if v, ok := c.Lookup(key); ok {
		if b, ok := v.AsBool(); ok {
			return b
		}
	}
	return def
}

// Set stores value at key, creating intermediate mappings. It does not save.
func (c *Config) Set(key string, value any) error {
	parts, err := splitKey(key)
	if err != nil {
		return failure.Wrap(failure.ErrValidation, "batchconfig", "set", "", err)
	}
	converted, err := FromNative(value)
	if err != nil {
		return failure.Wrap(failure.ErrValidation, "batchconfig", "set", key, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := setPath(c.root, parts, converted); err != nil {
		return failure.Wrap(failure.ErrValidation, "batchconfig", "set", key, err)
	}
	return nil
}

// Delete removes key and reports whether it existed. It does not save.
func (c *Config) Delete(key string) bool {
	parts, err := splitKey(key)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return deletePath(c.root, parts)
}

// Snapshot returns a deep copy of the whole tree as plain Go values.
func (c *Config) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out, _ := c.root.Native().(map[string]any)
	return out
}

// StepKey returns the flag key for step n.
func StepKey(n int) string {
	return KeyStepsCompleted + ".step" + strconv.Itoa(n)
}

// StepConfigKey returns the parameter key prefix for step n.
func StepConfigKey(n int) string {
	return KeyStepConfigurations + ".step" + strconv.Itoa(n)
}

// StepCount returns the number of steps the batch tracks.
func (c *Config) StepCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if highest := highestStepKey(c.root); highest > c.stepCount {
		return highest
	}
	return c.stepCount
}

// SetStepCount fixes the number of tracked steps, seeding missing flags.
func (c *Config) SetStepCount(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepCount = n
	mergeDefaults(c.root, defaults(n))
}

// UpdateStepStatus sets the completion flag for step n. It does not save.
func (c *Config) UpdateStepStatus(n int, completed bool) error {
	if n < 1 {
		return failure.Wrap(failure.ErrValidation, "batchconfig", "update step status",
			fmt.Sprintf("invalid step number %d", n), nil)
	}
	return c.Set(StepKey(n), completed)
}

// StepCompleted reports whether step n is flagged complete.
func (c *Config) StepCompleted(n int) bool {
	return c.GetBool(StepKey(n), false)
}

// CompletedSteps lists completed step numbers in ascending order.
func (c *Config) CompletedSteps() []int {
	count := c.StepCount()
	out := make([]int, 0, count)
	for n := 1; n <= count; n++ {
		if c.StepCompleted(n) {
			out = append(out, n)
		}
	}
	return out
}

// NextIncompleteStep returns the first step whose flag is false or missing.
// The boolean is false when every tracked step is complete.
func (c *Config) NextIncompleteStep() (int, bool) {
	count := c.StepCount()
	for n := 1; n <= count; n++ {
		if !c.StepCompleted(n) {
			return n, true
		}
	}
	return 0, false
}

// Revert clears the completion flag of step n and leaves every other flag
// untouched. It does not save.
func (c *Config) Revert(n int) error {
	return c.UpdateStepStatus(n, false)
}

// StrictMode reports validation.strict_mode.
func (c *Config) StrictMode() bool {
	return c.GetBool(KeyStrictMode, false)
}

func defaults(stepCount int) Value {
	root := MapValue()
	project := MapValue()
	project.m["name"] = StringValue("")
	project.m["data_directory"] = StringValue("")
	project.m["created"] = StringValue("")
	root.m[KeyProject] = project

	steps := MapValue()
	for n := 1; n <= stepCount; n++ {
		steps.m["step"+strconv.Itoa(n)] = BoolValue(false)
	}
	root.m[KeyStepsCompleted] = steps
	root.m[KeyStepConfigurations] = MapValue()

	validation := MapValue()
	validation.m["strict_mode"] = BoolValue(false)
	root.m["validation"] = validation
	return root
}

func highestStepKey(root Value) int {
	steps, ok := root.Field(KeyStepsCompleted)
	if !ok {
		return 0
	}
	highest := 0
	for _, key := range steps.Keys() {
		if !strings.HasPrefix(key, "step") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(key, "step"))
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

// Initialise seeds project metadata on a fresh configuration.
func (c *Config) Initialise(name, dataDir string, created time.Time) error {
	if err := c.Set(KeyProjectName, name); err != nil {
		return err
	}
	if err := c.Set(KeyProjectDataDir, dataDir); err != nil {
		return err
	}
	return c.Set(KeyProjectCreated, created.UTC().Format(time.RFC3339))
}
