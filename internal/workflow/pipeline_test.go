package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"darkroom/internal/batchconfig"
	"darkroom/internal/failure"
	"darkroom/internal/processing"
	"darkroom/internal/stage"
	"darkroom/internal/validate"
	"darkroom/internal/workflow"
)

type testStep struct {
	number    int
	name      string
	fail      bool
	preFail   bool
	panicExec bool
	onExecute func(*processing.Context)
	onInputs  func(*processing.Context)
	executes  int
	trace     *[]int
}

func (s *testStep) Number() int  { return s.number }
func (s *testStep) Name() string { return s.name }

func (s *testStep) ValidateInputs(_ context.Context, pc *processing.Context) validate.Result {
	if s.onInputs != nil {
		s.onInputs(pc)
	}
	if s.preFail {
		return validate.Fail("step %d inputs missing", s.number)
	}
	return validate.OK()
}

func (s *testStep) Execute(_ context.Context, pc *processing.Context) (stage.Result, error) {
	s.executes++
	if s.panicExec {
		panic("unexpected execute")
	}
	if s.trace != nil {
		*s.trace = append(*s.trace, s.number)
	}
	if s.onExecute != nil {
		s.onExecute(pc)
	}
	if s.fail {
		return stage.Failed("step %d failed", s.number), nil
	}
	return stage.Succeeded("ok", nil), nil
}

func (s *testStep) ValidateOutputs(context.Context, *processing.Context) validate.Result {
	return validate.OK()
}

func newPipeline(t *testing.T, steps ...*testStep) *workflow.Pipeline {
	t.Helper()
	p := workflow.New()
	for _, s := range steps {
		if err := p.Register(s); err != nil {
			t.Fatalf("Register(%d): %v", s.number, err)
		}
	}
	return p
}

func makeSteps(n int, trace *[]int) []*testStep {
	out := make([]*testStep, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, &testStep{number: i, name: "step", trace: trace})
	}
	return out
}

func newContext(t *testing.T) *processing.Context {
	t.Helper()
	dir := t.TempDir()
	cfg := batchconfig.New(filepath.Join(dir, "batch.yaml"))
	return processing.New("batch-1", cfg, processing.NewPaths(dir))
}

func numbers(result *workflow.Result) []int {
	out := make([]int, 0, len(result.Steps))
	for _, rep := range result.Steps {
		out = append(out, rep.Step.Number)
	}
	return out
}

func TestRegisterRejectsInvalidNumbers(t *testing.T) {
	p := workflow.New()
	if err := p.Register(&testStep{number: 0, name: "zero"}); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := p.Register(&testStep{number: 1, name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := p.Register(&testStep{number: 1, name: "b"}); !errors.Is(err, failure.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := p.Register(nil); err == nil {
		t.Fatal("expected error for nil processor")
	}
}

func TestRunOrdersByNumber(t *testing.T) {
	var trace []int
	p := workflow.New()
	for _, n := range []int{3, 1, 2} {
		if err := p.Register(&testStep{number: n, name: "s", trace: &trace}); err != nil {
			t.Fatal(err)
		}
	}
	result, err := p.Run(context.Background(), newContext(t), workflow.DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, trace); diff != "" {
		t.Fatalf("execution order mismatch (-want +got):\n%s", diff)
	}
	if !result.Success || result.HaltedAt != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	want := []stage.Definition{{Number: 1, Name: "s"}, {Number: 2, Name: "s"}, {Number: 3, Name: "s"}}
	if diff := cmp.Diff(want, p.Definitions()); diff != "" {
		t.Fatalf("definitions mismatch (-want +got):\n%s", diff)
	}
}

func TestRunHaltsOnError(t *testing.T) {
	var trace []int
	steps := makeSteps(5, &trace)
	steps[2].fail = true
	p := newPipeline(t, steps...)
	pc := newContext(t)

	result, err := p.Run(context.Background(), pc, workflow.Options{StopOnError: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success || result.HaltedAt != 3 {
		t.Fatalf("expected halt at 3, got %+v", result)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, numbers(result)); diff != "" {
		t.Fatalf("reported steps mismatch (-want +got):\n%s", diff)
	}
	if steps[3].executes != 0 || steps[4].executes != 0 {
		t.Fatal("steps after the failure must not run")
	}
	if diff := cmp.Diff([]int{1, 2}, pc.Config.CompletedSteps()); diff != "" {
		t.Fatalf("completed steps mismatch (-want +got):\n%s", diff)
	}
}

func TestRunContinuesOnError(t *testing.T) {
	var trace []int
	steps := makeSteps(5, &trace)
	steps[2].fail = true
	p := newPipeline(t, steps...)
	pc := newContext(t)

	result, err := p.Run(context.Background(), pc, workflow.Options{StopOnError: false})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success || result.HaltedAt != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5}, trace); diff != "" {
		t.Fatalf("execution mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 4, 5}, pc.Config.CompletedSteps()); diff != "" {
		t.Fatalf("completed steps mismatch (-want +got):\n%s", diff)
	}
	if failed := result.Failed(); len(failed) != 1 || failed[0].Step.Number != 3 {
		t.Fatalf("unexpected failed reports %+v", failed)
	}
}

func TestPanickingStepDoesNotStopContinueRun(t *testing.T) {
	var trace []int
	steps := makeSteps(3, &trace)
	steps[1].panicExec = true
	p := newPipeline(t, steps...)
	pc := newContext(t)

	result, err := p.Run(context.Background(), pc, workflow.Options{StopOnError: false})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Fatal("expected run to report failure")
	}
	if diff := cmp.Diff([]int{1, 3}, pc.Config.CompletedSteps()); diff != "" {
		t.Fatalf("completed steps mismatch (-want +got):\n%s", diff)
	}
	failed := result.Failed()
	if len(failed) != 1 || failed[0].Step.Number != 2 || !errors.Is(failed[0].Result.Err, failure.ErrExecution) {
		t.Fatalf("unexpected failed reports %+v", failed)
	}
}

func TestResumeIsIdempotent(t *testing.T) {
	var trace []int
	steps := makeSteps(3, &trace)
	steps[1].fail = true
	p := newPipeline(t, steps...)
	pc := newContext(t)

	if _, err := p.Run(context.Background(), pc, workflow.DefaultOptions()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	steps[1].fail = false

	result, err := p.Resume(context.Background(), pc, workflow.DefaultOptions())
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !result.Success || result.Start != 2 {
		t.Fatalf("unexpected resume result %+v", result)
	}
	if steps[0].executes != 1 {
		t.Fatalf("completed step re-executed %d times", steps[0].executes)
	}
	if diff := cmp.Diff([]int{1, 2, 2, 3}, trace); diff != "" {
		t.Fatalf("execution mismatch (-want +got):\n%s", diff)
	}

	again, err := p.Resume(context.Background(), pc, workflow.DefaultOptions())
	if err != nil {
		t.Fatalf("second Resume: %v", err)
	}
	if !again.Success || len(again.Steps) != 0 {
		t.Fatalf("expected no-op resume, got %+v", again)
	}
}

func TestResumeAfterReload(t *testing.T) {
	steps := makeSteps(3, nil)
	steps[2].fail = true
	p := newPipeline(t, steps...)
	pc := newContext(t)
	if _, err := p.Run(context.Background(), pc, workflow.DefaultOptions()); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := batchconfig.Load(pc.Config.Path())
	if err != nil {
		t.Fatal(err)
	}
	fresh := processing.New(pc.BatchID, cfg, pc.Paths)
	steps[2].fail = false
	result, err := p.Resume(context.Background(), fresh, workflow.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{3}, numbers(result)); diff != "" {
		t.Fatalf("resumed steps mismatch (-want +got):\n%s", diff)
	}
}

func TestFailedPreconditionNeverExecutes(t *testing.T) {
	guarded := &testStep{number: 1, name: "guarded", preFail: true, panicExec: true}
	p := newPipeline(t, guarded)
	pc := newContext(t)

	result, err := p.Run(context.Background(), pc, workflow.DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success || result.HaltedAt != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if guarded.executes != 0 {
		t.Fatal("execute ran despite failed precondition")
	}
	if pc.Config.StepCompleted(1) {
		t.Fatal("flag must remain false")
	}
}

func TestCompletionPersistedBeforeNextStep(t *testing.T) {
	var seenOnDisk bool
	first := &testStep{number: 1, name: "first"}
	second := &testStep{number: 2, name: "second", onInputs: func(pc *processing.Context) {
		cfg, _, err := batchconfig.Load(pc.Config.Path())
		if err == nil {
			seenOnDisk = cfg.StepCompleted(1)
		}
	}}
	p := newPipeline(t, first, second)

	if _, err := p.Run(context.Background(), newContext(t), workflow.DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	if !seenOnDisk {
		t.Fatal("step 1 completion was not durable when step 2 started")
	}
}

func TestDryRunHasNoSideEffects(t *testing.T) {
	steps := makeSteps(3, nil)
	for _, s := range steps {
		s.panicExec = true
	}
	steps[1].preFail = true
	p := newPipeline(t, steps...)
	pc := newContext(t)

	result, err := p.Run(context.Background(), pc, workflow.Options{DryRun: true, StopOnError: false})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success || len(result.Steps) != 3 {
		t.Fatalf("unexpected dry run result %+v", result)
	}
	if rep, _ := result.Report(1); !rep.DryRun || !rep.Result.Success {
		t.Fatalf("unexpected step 1 report %+v", rep)
	}
	if len(pc.Config.CompletedSteps()) != 0 {
		t.Fatal("dry run must not set flags")
	}
	for _, st := range steps {
		if st.executes != 0 {
			t.Fatalf("dry run executed step %d", st.number)
		}
	}
	if _, err := os.Stat(pc.Config.Path()); !os.IsNotExist(err) {
		t.Fatalf("dry run wrote the config file: %v", err)
	}
}

func TestRunRange(t *testing.T) {
	var trace []int
	p := newPipeline(t, makeSteps(5, &trace)...)

	if _, err := p.Run(context.Background(), newContext(t), workflow.Options{Start: 2, End: 4}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{2, 3, 4}, trace); diff != "" {
		t.Fatalf("range mismatch (-want +got):\n%s", diff)
	}
	if _, err := p.Run(context.Background(), newContext(t), workflow.Options{Start: 4, End: 2}); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error for inverted range, got %v", err)
	}
}

func TestCancellationBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	steps := makeSteps(3, nil)
	steps[0].onExecute = func(*processing.Context) { cancel() }
	p := newPipeline(t, steps...)
	pc := newContext(t)

	result, err := p.Run(ctx, pc, workflow.DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Canceled || result.Success {
		t.Fatalf("expected canceled result, got %+v", result)
	}
	if steps[1].executes != 0 {
		t.Fatal("no step may start after cancellation")
	}
	if !pc.Config.StepCompleted(1) {
		t.Fatal("the running step must finish and record completion")
	}
}

func TestRunRejectsBusyContext(t *testing.T) {
	p := newPipeline(t, makeSteps(1, nil)...)
	pc := newContext(t)
	if !pc.Acquire() {
		t.Fatal("acquire")
	}
	_, err := p.Run(context.Background(), pc, workflow.DefaultOptions())
	if !errors.Is(err, workflow.ErrContextBusy) || !failure.Retryable(err) {
		t.Fatalf("expected busy error, got %v", err)
	}
	pc.Release()
	if _, err := p.Run(context.Background(), pc, workflow.DefaultOptions()); err != nil {
		t.Fatalf("Run after release: %v", err)
	}
}

type recordingObserver struct {
	before, after int
	steps         []int
	last          *workflow.Result
}

func (r *recordingObserver) BeforeRun(context.Context, workflow.RunInfo) error {
	r.before++
	return nil
}

func (r *recordingObserver) AfterStep(_ context.Context, _ workflow.RunInfo, rep workflow.StepReport) error {
	r.steps = append(r.steps, rep.Step.Number)
	return errors.New("journal unavailable")
}

func (r *recordingObserver) AfterRun(_ context.Context, result *workflow.Result) error {
	r.after++
	r.last = result
	return nil
}

func TestObserverNotifiedAndErrorsIgnored(t *testing.T) {
	obs := &recordingObserver{}
	p := workflow.New(workflow.WithObserver(obs))
	for _, s := range makeSteps(2, nil) {
		if err := p.Register(s); err != nil {
			t.Fatal(err)
		}
	}
	var events []processing.EventKind
	dir := t.TempDir()
	pc := processing.New("b", batchconfig.New(filepath.Join(dir, "c.yaml")), processing.NewPaths(dir),
		processing.WithEvents(func(evt processing.Event) { events = append(events, evt.Kind) }))

	result, err := p.Run(context.Background(), pc, workflow.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatal("observer errors must not fail the run")
	}
	if obs.before != 1 || obs.after != 1 || obs.last != result {
		t.Fatalf("unexpected observer state %+v", obs)
	}
	if diff := cmp.Diff([]int{1, 2}, obs.steps); diff != "" {
		t.Fatalf("observer steps mismatch (-want +got):\n%s", diff)
	}
	if events[0] != processing.EventRunStarted || events[len(events)-1] != processing.EventRunFinished {
		t.Fatalf("unexpected event sequence %v", events)
	}
}
