package workflow

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"darkroom/internal/failure"
	"darkroom/internal/logging"
	"darkroom/internal/stage"
)

// Pipeline holds an ordered set of numbered steps.
type Pipeline struct {
	mu       sync.RWMutex
	steps    map[int]stage.Processor
	logger   *slog.Logger
	observer Observer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for run-level messages.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver attaches observers notified on every run.
func WithObserver(observers ...Observer) Option {
	return func(p *Pipeline) {
		if p.observer != nil {
			observers = append([]Observer{p.observer}, observers...)
		}
		p.observer = MultiObserver(observers...)
	}
}

// New constructs an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:  make(map[int]stage.Processor),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "workflow")
	return p
}

// Register adds a step. Numbers must be positive and unique.
func (p *Pipeline) Register(proc stage.Processor) error {
	if proc == nil {
		return failure.Wrap(failure.ErrValidation, "workflow", "register", "step processor is nil", nil)
	}
	n := proc.Number()
	if n < 1 {
		return failure.Wrap(failure.ErrValidation, "workflow", "register",
			fmt.Sprintf("step %q has invalid number %d", proc.Name(), n), nil)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.steps[n]; ok {
		return failure.Wrap(failure.ErrDuplicate, "workflow", "register",
			fmt.Sprintf("step %d already registered as %q", n, existing.Name()), nil)
	}
	p.steps[n] = proc
	return nil
}

// Step returns the processor registered under n.
func (p *Pipeline) Step(n int) (stage.Processor, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	proc, ok := p.steps[n]
	return proc, ok
}

// Len returns the number of registered steps.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.steps)
}

// Last returns the highest registered step number, or 0 when empty.
func (p *Pipeline) Last() int {
	numbers := p.numbers()
	if len(numbers) == 0 {
		return 0
	}
	return numbers[len(numbers)-1]
}

// Definitions lists registered steps in ascending number order.
func (p *Pipeline) Definitions() []stage.Definition {
	ordered := p.ordered()
	out := make([]stage.Definition, 0, len(ordered))
	for _, proc := range ordered {
		out = append(out, stage.Describe(proc))
	}
	return out
}

// Processors lists registered steps in ascending number order.
func (p *Pipeline) Processors() []stage.Processor {
	return p.ordered()
}

func (p *Pipeline) numbers() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]int, 0, len(p.steps))
	for n := range p.steps {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (p *Pipeline) ordered() []stage.Processor {
	numbers := p.numbers()
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]stage.Processor, 0, len(numbers))
	for _, n := range numbers {
		if proc, ok := p.steps[n]; ok {
			out = append(out, proc)
		}
	}
	return out
}

// selectRange returns the steps numbered within [start, end].
func (p *Pipeline) selectRange(start, end int) ([]stage.Processor, int, int, error) {
	numbers := p.numbers()
	if len(numbers) == 0 {
		return nil, 0, 0, failure.Wrap(failure.ErrValidation, "workflow", "run", "no steps registered", nil)
	}
	if start == 0 {
		start = numbers[0]
	}
	if end == 0 {
		end = numbers[len(numbers)-1]
	}
	if start < 0 || end < 0 || start > end {
		return nil, 0, 0, failure.Wrap(failure.ErrValidation, "workflow", "run",
			fmt.Sprintf("invalid step range %d..%d", start, end), nil)
	}
	var out []stage.Processor
	for _, proc := range p.ordered() {
		if n := proc.Number(); n >= start && n <= end {
			out = append(out, proc)
		}
	}
	return out, start, end, nil
}
