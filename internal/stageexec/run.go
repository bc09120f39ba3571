package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"darkroom/internal/failure"
	"darkroom/internal/logging"
	"darkroom/internal/processing"
	"darkroom/internal/stage"
	"darkroom/internal/validate"
)

// Run executes one step under the fixed run contract:
//
//  1. validate inputs; an invalid result fails the step and Execute is never called
//  2. execute; a failed result or returned error ends the run
//  3. validate outputs; an invalid result fails the step without rollback
//  4. set the step's completion flag and durably save the batch configuration
//
// Step failures come back as a failed stage.Result. The error return is
// reserved for calls that could not start at all.
func Run(ctx context.Context, proc stage.Processor, pc *processing.Context) (stage.Result, error) {
	if err := checkArgs(proc, pc); err != nil {
		return stage.Result{}, err
	}

	n, name := proc.Number(), proc.Name()
	stepCtx := logging.WithStep(ctx, n)
	logger := stepLogger(stepCtx, pc, name)
	if aware, ok := proc.(stage.LoggerAware); ok {
		aware.SetLogger(logger)
	}

	pc.EnterStep(n, name)
	defer pc.LeaveStep()

	start := time.Now()
	logger.Info(
		"step started",
		logging.String(logging.FieldEventType, "step_start"),
		logging.String("step_label", stage.Label(name)),
	)
	pc.Emit(processing.Event{Kind: processing.EventStepStarted, Message: stage.Label(name) + " started"})

	res := runPhases(stepCtx, proc, pc, logger)
	if !res.Success {
		return finishFailure(pc, logger, name, res, start), nil
	}

	if err := markComplete(pc, n); err != nil {
		res = stage.FailedWith(err, "step completed but completion could not be saved: %v", err)
		return finishFailure(pc, logger, name, res, start), nil
	}

	logger.Info(
		"step completed",
		logging.String(logging.FieldEventType, "step_complete"),
		logging.String("result_message", strings.TrimSpace(res.Message)),
		logging.Duration("step_duration", time.Since(start)),
	)
	pc.Emit(processing.Event{Kind: processing.EventStepFinished, Success: true, Message: res.Message, Percent: 100})
	return res, nil
}

// Check runs only the input validation of proc, for dry runs. Nothing is
// executed and nothing is written.
func Check(ctx context.Context, proc stage.Processor, pc *processing.Context) (stage.Result, error) {
	if err := checkArgs(proc, pc); err != nil {
		return stage.Result{}, err
	}
	n, name := proc.Number(), proc.Name()
	stepCtx := logging.WithStep(ctx, n)
	logger := stepLogger(stepCtx, pc, name)

	pc.EnterStep(n, name)
	defer pc.LeaveStep()

	pre := applyStrict(pc, proc.ValidateInputs(stepCtx, pc))
	logWarnings(logger, "input", pre.Warnings)
	if !pre.Valid {
		logger.Info(
			"dry run precondition failed",
			logging.String(logging.FieldEventType, "step_dry_run"),
			logging.String("reason", pre.FirstError()),
		)
		return stage.FailedWith(
			failure.Wrap(failure.ErrValidation, name, "validate inputs", pre.FirstError(), nil),
			"input validation failed: %s", pre.FirstError(),
		), nil
	}
	logger.Info("dry run precondition passed", logging.String(logging.FieldEventType, "step_dry_run"))
	return stage.Succeeded("inputs valid", nil), nil
}

func runPhases(ctx context.Context, proc stage.Processor, pc *processing.Context, logger *slog.Logger) stage.Result {
	name := proc.Name()

	pre := applyStrict(pc, proc.ValidateInputs(ctx, pc))
	logWarnings(logger, "input", pre.Warnings)
	if !pre.Valid {
		return stage.FailedWith(
			failure.Wrap(failure.ErrValidation, name, "validate inputs", pre.FirstError(), nil),
			"input validation failed: %s", pre.FirstError(),
		)
	}

	res, err := execute(ctx, proc, pc, logger)
	if err != nil {
		msg := strings.TrimSpace(res.Message)
		if msg == "" {
			msg = err.Error()
		}
		return stage.FailedWith(failure.Wrap(failure.ErrExecution, name, "execute", "", err), "%s", msg)
	}
	if !res.Success {
		if strings.TrimSpace(res.Message) == "" {
			res.Message = "step reported failure"
		}
		if res.Err == nil {
			res.Err = failure.Wrap(failure.ErrExecution, name, "execute", res.Message, nil)
		}
		return res
	}

	post := applyStrict(pc, proc.ValidateOutputs(ctx, pc))
	logWarnings(logger, "output", post.Warnings)
	if !post.Valid {
		failed := stage.FailedWith(
			failure.Wrap(failure.ErrValidation, name, "validate outputs", post.FirstError(), nil),
			"output validation failed: %s", post.FirstError(),
		)
		failed.Payload = res.Payload
		return failed
	}
	return res
}

// execute calls proc.Execute and turns a panic into an error so one broken
// step cannot take down a continue-on-error run.
func execute(ctx context.Context, proc stage.Processor, pc *processing.Context, logger *slog.Logger) (res stage.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "step panicked", "step_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report this as a bug in the step"),
			)
			res, err = stage.Result{}, fmt.Errorf("step panicked: %v", r)
		}
	}()
	return proc.Execute(ctx, pc)
}

// markComplete sets and saves the flag. A failed save restores the in-memory
// flag so memory and disk agree.
func markComplete(pc *processing.Context, n int) error {
	cfg := pc.Config
	previous := cfg.StepCompleted(n)
	if err := cfg.UpdateStepStatus(n, true); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		if restoreErr := cfg.UpdateStepStatus(n, previous); restoreErr != nil {
			return errors.Join(err, restoreErr)
		}
		return err
	}
	return nil
}

func finishFailure(pc *processing.Context, logger *slog.Logger, name string, res stage.Result, start time.Time) stage.Result {
	hint := failure.Hint(res.Err)
	logging.ErrorWithContext(
		logger,
		"step failed",
		"step_failure",
		logging.String("step_label", stage.Label(name)),
		logging.String("error_message", strings.TrimSpace(res.Message)),
		logging.String(logging.FieldErrorHint, hint),
		logging.Duration("step_duration", time.Since(start)),
		logging.Error(res.Err),
	)
	pc.Emit(processing.Event{Kind: processing.EventStepFinished, Success: false, Message: res.Message})
	return res
}

func applyStrict(pc *processing.Context, res validate.Result) validate.Result {
	if pc.Config.StrictMode() {
		return res.Strict()
	}
	return res
}

func logWarnings(logger *slog.Logger, phase string, warnings []string) {
	for _, w := range warnings {
		logging.WarnWithContext(
			logger,
			"step validation warning",
			"step_validation_warning",
			logging.String("phase", phase),
			logging.String("warning", w),
			logging.String(logging.FieldImpact, "step continues; review the warning"),
		)
	}
}

func stepLogger(ctx context.Context, pc *processing.Context, name string) *slog.Logger {
	ctx = logging.WithBatchID(ctx, pc.BatchID)
	return logging.WithContext(ctx, pc.Logger).With(logging.String(logging.FieldStepName, name))
}

func checkArgs(proc stage.Processor, pc *processing.Context) error {
	if proc == nil {
		return errors.New("step processor is required")
	}
	if pc == nil {
		return errors.New("processing context is required")
	}
	if pc.Config == nil {
		return fmt.Errorf("step %d: batch configuration is required", proc.Number())
	}
	return nil
}
