package processing

import (
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"darkroom/internal/batchconfig"
	"darkroom/internal/logging"
)

// Context carries per-run resources through a pipeline run.
type Context struct {
	BatchID string
	Config  *batchconfig.Config
	Paths   Paths
	Logger  *slog.Logger

	step     int
	stepName string
	shared   map[string]any
	events   EventSink
	busy     atomic.Bool
}

// Option customises a Context.
type Option func(*Context)

// WithLogger sets the logger steps write to.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithEvents installs a progress event sink.
func WithEvents(sink EventSink) Option {
	return func(c *Context) {
		c.events = sink
	}
}

// New builds a Context for one batch.
func New(batchID string, cfg *batchconfig.Config, paths Paths, opts ...Option) *Context {
	c := &Context{
		BatchID: batchID,
		Config:  cfg,
		Paths:   paths,
		Logger:  logging.NewNop(),
		shared:  make(map[string]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Step returns the number of the step currently running, or 0 between steps.
func (c *Context) Step() int {
	return c.step
}

// StepName returns the name of the step currently running.
func (c *Context) StepName() string {
	return c.stepName
}

// EnterStep records the step about to run.
func (c *Context) EnterStep(n int, name string) {
	c.step = n
	c.stepName = name
}

// LeaveStep clears the current step.
func (c *Context) LeaveStep() {
	c.step = 0
	c.stepName = ""
}

// Acquire marks the context as owned by a run. It returns false when another
// run already owns it.
func (c *Context) Acquire() bool {
	return c.busy.CompareAndSwap(false, true)
}

// Release gives up run ownership.
func (c *Context) Release() {
	c.busy.Store(false)
}

// Shared returns a value stored by an earlier step.
func (c *Context) Shared(key string) (any, bool) {
	v, ok := c.shared[key]
	return v, ok
}

// SetShared stores a value for later steps in the same run.
func (c *Context) SetShared(key string, value any) {
	c.shared[key] = value
}

// SharedKeys lists shared-data keys in sorted order.
func (c *Context) SharedKeys() []string {
	keys := make([]string, 0, len(c.shared))
	for k := range c.shared {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SharedAs returns a shared value converted to T.
func SharedAs[T any](c *Context, key string) (T, bool) {
	var zero T
	raw, ok := c.Shared(key)
	if !ok {
		return zero, false
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Emit delivers evt to the sink, filling batch, step and time defaults.
func (c *Context) Emit(evt Event) {
	if c.events == nil {
		return
	}
	if evt.BatchID == "" {
		evt.BatchID = c.BatchID
	}
	if evt.Step == 0 {
		evt.Step = c.step
		if evt.StepName == "" {
			evt.StepName = c.stepName
		}
	}
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}
	c.events(evt)
}

// Progress reports intermediate progress of the current step.
func (c *Context) Progress(message string, percent float64) {
	c.Emit(Event{Kind: EventProgress, Message: message, Percent: percent})
}
