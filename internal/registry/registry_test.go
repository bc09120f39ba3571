package registry_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/go-cmp/cmp"

	"darkroom/internal/failure"
	"darkroom/internal/registry"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newRegistry(t *testing.T, opts ...registry.Option) (*registry.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	clock := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]registry.Option{registry.WithClock(clock.now)}, opts...)
	return registry.New(filepath.Join(dir, "state", "registry.json"), opts...), dir
}

func register(t *testing.T, reg *registry.Registry, name, dataDir string) string {
	t.Helper()
	id, err := reg.Register(context.Background(), name, dataDir, filepath.Join(dataDir, "batch.yaml"))
	if err != nil {
		t.Fatalf("Register(%s): %v", name, err)
	}
	return id
}

func TestRegisterAndGet(t *testing.T) {
	reg, dir := newRegistry(t)
	dataDir := filepath.Join(dir, "spring")
	id := register(t, reg, "spring", dataDir)

	got, err := reg.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "spring" || got.DataDirectory != dataDir || got.Status != registry.StatusActive {
		t.Fatalf("unexpected batch %+v", got)
	}
	if got.ConfigPath != filepath.Join(dataDir, "batch.yaml") || got.Created.IsZero() {
		t.Fatalf("unexpected batch %+v", got)
	}
	if _, err := reg.Get("missing"); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegisterDuplicateDataDirectoryIsIdempotent(t *testing.T) {
	reg, dir := newRegistry(t)
	dataDir := filepath.Join(dir, "spring")
	first := register(t, reg, "spring", dataDir)
	before, err := reg.Get(first)
	if err != nil {
		t.Fatal(err)
	}

	second, err := reg.Register(context.Background(), "renamed", dataDir+"/./", filepath.Join(dir, "other.yaml"))
	if err != nil {
		t.Fatalf("duplicate Register: %v", err)
	}
	if second != first {
		t.Fatalf("expected existing id %s, got %s", first, second)
	}
	after, err := reg.Get(first)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("duplicate registration changed the record (-before +after):\n%s", diff)
	}
	all, _ := reg.List(true)
	if len(all) != 1 {
		t.Fatalf("expected one batch, got %d", len(all))
	}
}

func TestRegisterRejectsBlankInput(t *testing.T) {
	reg, dir := newRegistry(t)
	if _, err := reg.Register(context.Background(), " ", dir, filepath.Join(dir, "c.yaml")); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
	if _, err := reg.Register(context.Background(), "x", "", filepath.Join(dir, "c.yaml")); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error for blank dir, got %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to registry.Status
		ok       bool
	}{
		{registry.StatusActive, registry.StatusCompleted, true},
		{registry.StatusActive, registry.StatusArchived, true},
		{registry.StatusCompleted, registry.StatusArchived, true},
		{registry.StatusCompleted, registry.StatusActive, true},
		{registry.StatusArchived, registry.StatusActive, true},
		{registry.StatusArchived, registry.StatusCompleted, false},
		{registry.StatusActive, registry.StatusActive, true},
		{registry.StatusActive, registry.Status("deleted"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			reg, dir := newRegistry(t)
			id := register(t, reg, "b", filepath.Join(dir, "b"))
			if tt.from != registry.StatusActive {
				path := []registry.Status{registry.StatusCompleted}
				if tt.from == registry.StatusArchived {
					path = append(path, registry.StatusArchived)
				}
				for _, s := range path {
					if err := reg.UpdateStatus(context.Background(), id, s); err != nil {
						t.Fatalf("setup transition to %s: %v", s, err)
					}
				}
			}
			err := reg.UpdateStatus(context.Background(), id, tt.to)
			if tt.ok && err != nil {
				t.Fatalf("expected transition allowed, got %v", err)
			}
			if !tt.ok && !errors.Is(err, failure.ErrInvalidTransition) {
				t.Fatalf("expected invalid transition, got %v", err)
			}
			got, _ := reg.Get(id)
			want := tt.to
			if !tt.ok {
				want = tt.from
			}
			if got.Status != want {
				t.Fatalf("status = %s, want %s", got.Status, want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := registry.ParseStatus(" Archived "); err != nil || s != registry.StatusArchived {
		t.Fatalf("ParseStatus = %q, %v", s, err)
	}
	if _, err := registry.ParseStatus("gone"); !errors.Is(err, failure.ErrInvalidTransition) {
		t.Fatalf("expected invalid status error, got %v", err)
	}
}

func TestListOrderingAndArchivedFilter(t *testing.T) {
	reg, dir := newRegistry(t)
	a := register(t, reg, "a", filepath.Join(dir, "a"))
	b := register(t, reg, "b", filepath.Join(dir, "b"))
	c := register(t, reg, "c", filepath.Join(dir, "c"))

	if err := reg.Touch(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if err := reg.UpdateStatus(context.Background(), b, registry.StatusArchived); err != nil {
		t.Fatal(err)
	}

	ids := func(list []registry.Batch) []string {
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, item.ID)
		}
		return out
	}

	visible, err := reg.List(false)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{a, c}, ids(visible)); diff != "" {
		t.Fatalf("active list mismatch (-want +got):\n%s", diff)
	}
	all, err := reg.List(true)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{a, c, b}, ids(all)); diff != "" {
		t.Fatalf("full list mismatch (-want +got):\n%s", diff)
	}
}

func TestFindByNameAndResolve(t *testing.T) {
	reg, dir := newRegistry(t)
	first := register(t, reg, "dup", filepath.Join(dir, "one"))
	second := register(t, reg, "dup", filepath.Join(dir, "two"))

	found, err := reg.FindByName("dup")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 || found[0].ID != second {
		t.Fatalf("unexpected FindByName result %+v", found)
	}
	got, err := reg.Resolve(first[:8])
	if err != nil || got.ID != first {
		t.Fatalf("Resolve prefix = %+v, %v", got, err)
	}
	batch, ok, err := reg.FindByDataDirectory(filepath.Join(dir, "two"))
	if err != nil || !ok || batch.ID != second {
		t.Fatalf("FindByDataDirectory = %+v,%v,%v", batch, ok, err)
	}
}

func TestUnregisterKeepsFiles(t *testing.T) {
	reg, dir := newRegistry(t)
	dataDir := filepath.Join(dir, "keep")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dataDir, "batch.yaml")
	if err := os.WriteFile(cfgPath, []byte("project: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	id := register(t, reg, "keep", dataDir)

	if err := reg.Unregister(context.Background(), id); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if _, err := reg.Get(id); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected not found after unregister, got %v", err)
	}
	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("config file removed: %v", err)
	}
	if err := reg.Unregister(context.Background(), id); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected not found on second unregister, got %v", err)
	}
}

func TestLockContentionTimesOut(t *testing.T) {
	reg, dir := newRegistry(t,
		registry.WithLockTimeout(60*time.Millisecond),
		registry.WithLockRetry(10*time.Millisecond))
	if err := os.MkdirAll(filepath.Dir(reg.Path()), 0o755); err != nil {
		t.Fatal(err)
	}

	holder := flock.New(reg.Path() + ".lock")
	locked, err := holder.TryLock()
	if err != nil || !locked {
		t.Fatalf("hold lock: %v %v", locked, err)
	}
	defer holder.Unlock()

	_, err = reg.Register(context.Background(), "x", filepath.Join(dir, "x"), filepath.Join(dir, "x.yaml"))
	if !errors.Is(err, failure.ErrContention) {
		t.Fatalf("expected contention error, got %v", err)
	}
	if !failure.Retryable(err) {
		t.Fatal("contention must be retryable")
	}
	if _, statErr := os.Stat(reg.Path()); !os.IsNotExist(statErr) {
		t.Fatalf("registry file written without the lock: %v", statErr)
	}
}

func TestCorruptIndexIsReportedNotOverwritten(t *testing.T) {
	reg, dir := newRegistry(t)
	if err := os.MkdirAll(filepath.Dir(reg.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(reg.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.List(true); !errors.Is(err, failure.ErrConfigCorruption) {
		t.Fatalf("expected corruption error, got %v", err)
	}
	if _, err := reg.Register(context.Background(), "x", filepath.Join(dir, "x"), filepath.Join(dir, "x.yaml")); !errors.Is(err, failure.ErrConfigCorruption) {
		t.Fatalf("expected corruption error on mutation, got %v", err)
	}
	data, _ := os.ReadFile(reg.Path())
	if string(data) != "{not json" {
		t.Fatal("corrupt index was overwritten")
	}
}
