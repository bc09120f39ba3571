package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"darkroom/internal/logging"
	"darkroom/internal/processing"
	"darkroom/internal/stage"
	"darkroom/internal/stageexec"
)

// Run executes the steps selected by opts in ascending number order.
//
// The returned error covers runs that could not start: an invalid range, a
// missing context, or a context already owned by another run. Step failures
// are reported in the Result.
func (p *Pipeline) Run(ctx context.Context, pc *processing.Context, opts Options) (*Result, error) {
	if pc == nil || pc.Config == nil {
		return nil, errors.New("processing context with batch configuration is required")
	}
	steps, start, end, err := p.selectRange(opts.Start, opts.End)
	if err != nil {
		return nil, err
	}
	if !pc.Acquire() {
		return nil, ErrContextBusy
	}
	defer pc.Release()

	pc.Config.SetStepCount(p.Last())

	info := RunInfo{
		RunID:   uuid.NewString(),
		BatchID: pc.BatchID,
		Options: opts,
		Start:   start,
		End:     end,
		Started: time.Now().UTC(),
	}
	runCtx := logging.WithRunID(logging.WithBatchID(ctx, pc.BatchID), info.RunID)
	logger := logging.WithContext(runCtx, p.logger)

	result := &Result{RunInfo: info, Success: true}
	logger.Info(
		"pipeline run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("first_step", start),
		logging.Int("last_step", end),
		logging.Int("step_count", len(steps)),
		logging.Bool("dry_run", opts.DryRun),
		logging.Bool("stop_on_error", opts.StopOnError),
	)
	p.notify(logger, "before run", func(obs Observer) error { return obs.BeforeRun(runCtx, info) })
	pc.Emit(processing.Event{Kind: processing.EventRunStarted, Message: "run started"})

	for _, proc := range steps {
		if err := ctx.Err(); err != nil {
			result.Canceled = true
			result.Success = false
			logger.Info(
				"pipeline run canceled",
				logging.String(logging.FieldEventType, "run_canceled"),
				logging.Int("next_step", proc.Number()),
				logging.Error(err),
			)
			break
		}

		report := p.runStep(runCtx, proc, pc, opts.DryRun)
		result.Steps = append(result.Steps, report)
		p.notify(logger, "after step", func(obs Observer) error { return obs.AfterStep(runCtx, info, report) })

		if report.Result.Success {
			continue
		}
		result.Success = false
		if opts.StopOnError {
			result.HaltedAt = proc.Number()
			logger.Info(
				"pipeline halted",
				logging.String(logging.FieldEventType, "run_halted"),
				logging.Int(logging.FieldStep, proc.Number()),
				logging.String(logging.FieldStepName, proc.Name()),
			)
			break
		}
	}

	result.Finished = time.Now().UTC()
	p.notify(logger, "after run", func(obs Observer) error { return obs.AfterRun(runCtx, result) })
	pc.Emit(processing.Event{Kind: processing.EventRunFinished, Success: result.Success, Message: summary(result)})
	logger.Info(
		"pipeline run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Bool("success", result.Success),
		logging.Int("steps_run", len(result.Steps)),
		logging.Int("halted_at", result.HaltedAt),
		logging.Bool("canceled", result.Canceled),
		logging.Duration("run_duration", result.Finished.Sub(result.Started)),
	)
	return result, nil
}

// Resume runs from the first incomplete step recorded in the batch
// configuration through opts.End. opts.Start is ignored. When every step is
// already complete Resume returns a successful Result with no steps.
func (p *Pipeline) Resume(ctx context.Context, pc *processing.Context, opts Options) (*Result, error) {
	if pc == nil || pc.Config == nil {
		return nil, errors.New("processing context with batch configuration is required")
	}
	pc.Config.SetStepCount(p.Last())
	next, ok := pc.Config.NextIncompleteStep()
	end := opts.End
	if end == 0 {
		end = p.Last()
	}
	if !ok || next > end {
		p.logger.Info(
			"nothing to resume",
			logging.String(logging.FieldEventType, "run_skipped"),
			logging.String(logging.FieldBatchID, pc.BatchID),
		)
		now := time.Now().UTC()
		return &Result{
			RunInfo:  RunInfo{BatchID: pc.BatchID, Options: opts, Started: now},
			Success:  true,
			Finished: now,
		}, nil
	}
	opts.Start = next
	return p.Run(ctx, pc, opts)
}

func (p *Pipeline) runStep(ctx context.Context, proc stage.Processor, pc *processing.Context, dryRun bool) StepReport {
	report := StepReport{Step: stage.Describe(proc), DryRun: dryRun, Started: time.Now().UTC()}
	var (
		res stage.Result
		err error
	)
	if dryRun {
		res, err = stageexec.Check(ctx, proc, pc)
	} else {
		res, err = stageexec.Run(ctx, proc, pc)
	}
	if err != nil {
		res = stage.FailedWith(err, "%v", err)
	}
	report.Result = res
	report.Duration = time.Since(report.Started)
	return report
}

func (p *Pipeline) notify(logger *slog.Logger, hook string, fn func(Observer) error) {
	if p.observer == nil {
		return
	}
	if err := fn(p.observer); err != nil {
		logging.WarnWithContext(
			logger,
			"run observer failed",
			"observer_failure",
			logging.String("hook", hook),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run history may be incomplete"),
		)
	}
}

func summary(result *Result) string {
	switch {
	case result.Canceled:
		return "run canceled"
	case result.HaltedAt > 0:
		return "run halted"
	case result.Success:
		return "run succeeded"
	default:
		return "run finished with failures"
	}
}
