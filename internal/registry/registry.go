package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"darkroom/internal/config"
	"darkroom/internal/failure"
	"darkroom/internal/fileutil"
	"darkroom/internal/logging"
)

const (
	formatVersion      = 1
	defaultLockTimeout = 10 * time.Second
	defaultLockRetry   = 100 * time.Millisecond
)

// errNoChange lets a mutation finish without rewriting the file.
var errNoChange = errors.New("no change")

// Batch is one registered batch.
type Batch struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	DataDirectory string    `json:"data_directory"`
	ConfigPath    string    `json:"config_path"`
	Status        Status    `json:"status"`
	Created       time.Time `json:"created"`
	LastAccessed  time.Time `json:"last_accessed"`
}

type record struct {
	Name          string    `json:"name"`
	DataDirectory string    `json:"data_directory"`
	ConfigPath    string    `json:"config_path"`
	Created       time.Time `json:"created"`
	LastAccessed  time.Time `json:"last_accessed"`
	Status        Status    `json:"status"`
}

type document struct {
	Version int               `json:"version"`
	Batches map[string]record `json:"batches"`
}

func (r record) batch(id string) Batch {
	return Batch{
		ID:            id,
		Name:          r.Name,
		DataDirectory: r.DataDirectory,
		ConfigPath:    r.ConfigPath,
		Status:        r.Status,
		Created:       r.Created,
		LastAccessed:  r.LastAccessed,
	}
}

// Registry reads and mutates the index file.
type Registry struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	lockRetry   time.Duration
	logger      *slog.Logger
	now         func() time.Time
	commit      func(path string, data []byte) error
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithLockTimeout bounds how long a mutation waits for the file lock.
func WithLockTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.lockTimeout = d
		}
	}
}

// WithLockRetry sets the interval between lock attempts.
func WithLockRetry(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.lockRetry = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New returns a Registry backed by the index file at path. The file is
// created on the first mutation.
func New(path string, opts ...Option) *Registry {
	r := &Registry{
		path:        filepath.Clean(path),
		lockPath:    filepath.Clean(path) + ".lock",
		lockTimeout: defaultLockTimeout,
		lockRetry:   defaultLockRetry,
		logger:      logging.NewNop(),
		now:         time.Now,
		commit: func(path string, data []byte) error {
			return fileutil.WriteAtomic(path, data, 0o644)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "registry")
	return r
}

// FromConfig builds a Registry from application configuration.
func FromConfig(cfg *config.Config, logger *slog.Logger) *Registry {
	return New(cfg.Paths.RegistryPath,
		WithLogger(logger),
		WithLockTimeout(cfg.LockTimeout()),
		WithLockRetry(cfg.LockRetry()),
	)
}

// Path returns the index file location.
func (r *Registry) Path() string {
	return r.path
}

// Register adds a batch and returns its id. Registering a data directory
// that is already indexed returns the existing id and changes nothing.
func (r *Registry) Register(ctx context.Context, name, dataDir, configPath string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", failure.Wrap(failure.ErrValidation, "registry", "register", "batch name is required", nil)
	}
	dataDir, err := canonical(dataDir)
	if err != nil {
		return "", failure.Wrap(failure.ErrValidation, "registry", "register", "data directory", err)
	}
	configPath, err = canonical(configPath)
	if err != nil {
		return "", failure.Wrap(failure.ErrValidation, "registry", "register", "config path", err)
	}

	var id string
	err = r.mutate(ctx, "register", func(doc *document) error {
		for existingID, rec := range doc.Batches {
			if rec.DataDirectory == dataDir {
				id = existingID
				r.logger.Info("data directory already registered",
					logging.String(logging.FieldEventType, "batch_register_existing"),
					logging.String(logging.FieldBatchID, existingID),
					logging.String("data_directory", dataDir))
				return errNoChange
			}
		}
		id = uuid.NewString()
		now := r.now().UTC()
		doc.Batches[id] = record{
			Name:          name,
			DataDirectory: dataDir,
			ConfigPath:    configPath,
			Created:       now,
			LastAccessed:  now,
			Status:        StatusActive,
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	r.logger.Debug("batch registered",
		logging.String(logging.FieldBatchID, id),
		logging.String("name", name),
		logging.String("data_directory", dataDir))
	return id, nil
}

// Get returns the batch with the given id.
func (r *Registry) Get(id string) (Batch, error) {
	doc, err := r.read()
	if err != nil {
		return Batch{}, err
	}
	rec, ok := doc.Batches[strings.TrimSpace(id)]
	if !ok {
		return Batch{}, notFound(id)
	}
	return rec.batch(strings.TrimSpace(id)), nil
}

// Resolve finds a batch by full id or unique id prefix.
func (r *Registry) Resolve(ref string) (Batch, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Batch{}, failure.Wrap(failure.ErrValidation, "registry", "resolve", "batch id is required", nil)
	}
	doc, err := r.read()
	if err != nil {
		return Batch{}, err
	}
	if rec, ok := doc.Batches[ref]; ok {
		return rec.batch(ref), nil
	}
	var matches []string
	for id := range doc.Batches {
		if strings.HasPrefix(id, ref) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return Batch{}, notFound(ref)
	case 1:
		return doc.Batches[matches[0]].batch(matches[0]), nil
	default:
		sort.Strings(matches)
		return Batch{}, failure.Wrap(failure.ErrValidation, "registry", "resolve",
			fmt.Sprintf("id prefix %q matches %d batches", ref, len(matches)), nil)
	}
}

// FindByName returns every batch with the given name, most recently
// accessed first. Names are not unique.
func (r *Registry) FindByName(name string) ([]Batch, error) {
	all, err := r.List(true)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	var out []Batch
	for _, b := range all {
		if b.Name == name {
			out = append(out, b)
		}
	}
	return out, nil
}

// FindByDataDirectory returns the batch indexed for dir.
func (r *Registry) FindByDataDirectory(dir string) (Batch, bool, error) {
	dir, err := canonical(dir)
	if err != nil {
		return Batch{}, false, failure.Wrap(failure.ErrValidation, "registry", "find", "data directory", err)
	}
	doc, err := r.read()
	if err != nil {
		return Batch{}, false, err
	}
	for id, rec := range doc.Batches {
		if rec.DataDirectory == dir {
			return rec.batch(id), true, nil
		}
	}
	return Batch{}, false, nil
}

// List returns batches ordered by last access, newest first. Archived
// batches are included only when includeArchived is set.
func (r *Registry) List(includeArchived bool) ([]Batch, error) {
	doc, err := r.read()
	if err != nil {
		return nil, err
	}
	out := make([]Batch, 0, len(doc.Batches))
	for id, rec := range doc.Batches {
		if rec.Status == StatusArchived && !includeArchived {
			continue
		}
		out = append(out, rec.batch(id))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastAccessed.Equal(out[j].LastAccessed) {
			return out[i].LastAccessed.After(out[j].LastAccessed)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateStatus moves a batch to status. Same-status updates succeed without
// writing.
func (r *Registry) UpdateStatus(ctx context.Context, id string, status Status) error {
	id = strings.TrimSpace(id)
	return r.mutate(ctx, "update status", func(doc *document) error {
		rec, ok := doc.Batches[id]
		if !ok {
			return notFound(id)
		}
		if !CanTransition(rec.Status, status) {
			return failure.Wrap(failure.ErrInvalidTransition, "registry", "update status",
				fmt.Sprintf("%s cannot move from %s to %s", id, rec.Status, status), nil)
		}
		if rec.Status == status {
			return errNoChange
		}
		r.logger.Info("batch status changed",
			logging.String(logging.FieldEventType, "batch_status_changed"),
			logging.String(logging.FieldBatchID, id),
			logging.String("from", string(rec.Status)),
			logging.String("to", string(status)))
		rec.Status = status
		doc.Batches[id] = rec
		return nil
	})
}

// Touch records an access to the batch.
func (r *Registry) Touch(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	return r.mutate(ctx, "touch", func(doc *document) error {
		rec, ok := doc.Batches[id]
		if !ok {
			return notFound(id)
		}
		rec.LastAccessed = r.now().UTC()
		doc.Batches[id] = rec
		return nil
	})
}

// Unregister removes a batch from the index. Its files stay on disk.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	return r.mutate(ctx, "unregister", func(doc *document) error {
		if _, ok := doc.Batches[id]; !ok {
			return notFound(id)
		}
		delete(doc.Batches, id)
		r.logger.Info("batch unregistered",
			logging.String(logging.FieldEventType, "batch_unregistered"),
			logging.String(logging.FieldBatchID, id))
		return nil
	})
}

// mutate runs fn under the exclusive file lock against a fresh read of the
// index and writes the result atomically.
func (r *Registry) mutate(ctx context.Context, op string, fn func(*document) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return failure.Wrap(failure.ErrExecution, "registry", op, "create registry directory", err)
	}
	lock := flock.New(r.lockPath)
	if err := r.acquire(ctx, lock, op); err != nil {
		return err
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil && err == nil {
			err = failure.Wrap(failure.ErrExecution, "registry", op, "release lock", unlockErr)
		}
	}()

	if removed, cleanErr := fileutil.RemoveStaleTemps(r.path); cleanErr == nil && removed > 0 {
		r.logger.Debug("removed interrupted registry writes", logging.Int("count", removed))
	}

	doc, err := r.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return failure.Wrap(failure.ErrExecution, "registry", op, "encode index", err)
	}
	if err := r.commit(r.path, append(data, '\n')); err != nil {
		return failure.Wrap(failure.ErrExecution, "registry", op, "write index", err)
	}
	return nil
}

func (r *Registry) acquire(ctx context.Context, lock *flock.Flock, op string) error {
	lockCtx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, r.lockRetry)
	if locked {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return failure.Wrap(failure.ErrExecution, "registry", op, "acquire lock", err)
	}
	logging.WarnWithContext(r.logger, "registry lock busy", "registry_contention",
		logging.String("lock_path", r.lockPath),
		logging.Duration("waited", r.lockTimeout),
		logging.String(logging.FieldErrorHint, "retry the operation"),
		logging.String(logging.FieldImpact, "registry was not modified"))
	return failure.Wrap(failure.ErrContention, "registry", op,
		fmt.Sprintf("lock not acquired within %s", r.lockTimeout), nil)
}

func (r *Registry) read() (*document, error) {
	doc := &document{Version: formatVersion, Batches: make(map[string]record)}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return nil, failure.Wrap(failure.ErrExecution, "registry", "read", r.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, failure.Wrap(failure.ErrConfigCorruption, "registry", "read", r.path, err)
	}
	if doc.Version > formatVersion {
		return nil, failure.Wrap(failure.ErrConfigCorruption, "registry", "read",
			fmt.Sprintf("unsupported index version %d", doc.Version), nil)
	}
	doc.Version = formatVersion
	if doc.Batches == nil {
		doc.Batches = make(map[string]record)
	}
	return doc, nil
}

func canonical(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is required")
	}
	if expanded, err := config.ExpandPath(path); err == nil {
		path = expanded
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

func notFound(id string) error {
	return failure.Wrap(failure.ErrNotFound, "registry", "lookup", fmt.Sprintf("batch %q", id), nil)
}
