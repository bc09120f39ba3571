package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"darkroom/internal/batch"
	"darkroom/internal/batchconfig"
	"darkroom/internal/failure"
	"darkroom/internal/logging"
	"darkroom/internal/processing"
	"darkroom/internal/stage"
	"darkroom/internal/workflow"
)

func newRunCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newRunCommand(ctx),
		newResumeCommand(ctx),
		newRevertCommand(ctx),
	}
}

type runRequest struct {
	ref        string
	opts       workflow.Options
	resume     bool
	jsonOutput bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var from, to int
	var continueOnError bool
	var dryRun bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Run pipeline steps over a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req := runRequest{
				ref: args[0],
				opts: workflow.Options{
					Start:       from,
					End:         to,
					StopOnError: cfg.Pipeline.StopOnError && !continueOnError,
					DryRun:      dryRun,
				},
				jsonOutput: jsonOutput,
			}
			return executeRun(cmd, ctx, req)
		},
	}

	cmd.Flags().IntVar(&from, "from", 0, "First step to run (default: first step)")
	cmd.Flags().IntVar(&to, "to", 0, "Last step to run (default: last step)")
	cmd.Flags().BoolVar(&continueOnError, "continue", false, "Keep running after a step fails")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only validate step inputs")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var to int
	var continueOnError bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "resume <id>",
		Short: "Run from the first incomplete step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req := runRequest{
				ref: args[0],
				opts: workflow.Options{
					End:         to,
					StopOnError: cfg.Pipeline.StopOnError && !continueOnError,
				},
				resume:     true,
				jsonOutput: jsonOutput,
			}
			return executeRun(cmd, ctx, req)
		},
	}

	cmd.Flags().IntVar(&to, "to", 0, "Last step to run (default: last step)")
	cmd.Flags().BoolVar(&continueOnError, "continue", false, "Keep running after a step fails")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func executeRun(cmd *cobra.Command, ctx *commandContext, req runRequest) error {
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	mgr, err := ctx.manager()
	if err != nil {
		return err
	}

	var observers []workflow.Observer
	if store, err := ctx.openHistory(); err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.history_path in the configuration"),
			logging.String(logging.FieldImpact, "this run will not be recorded"))
	} else {
		defer store.Close()
		observers = append(observers, store)
	}

	p, err := ctx.pipeline(observers...)
	if err != nil {
		return err
	}
	h, err := mgr.Open(cmd.Context(), req.ref, batchconfig.WithStepCount(p.Last()))
	if err != nil {
		return err
	}

	pcOpts := []processing.Option{processing.WithLogger(logger)}
	if !req.jsonOutput {
		pcOpts = append(pcOpts, processing.WithEvents(progressSink(cmd.ErrOrStderr(), p.Last())))
	}
	pc := h.Context(pcOpts...)

	var result *workflow.Result
	if req.resume {
		result, err = p.Resume(cmd.Context(), pc, req.opts)
	} else {
		result, err = p.Run(cmd.Context(), pc, req.opts)
	}
	if err != nil {
		return err
	}

	if !req.opts.DryRun {
		// Status sync must not be skipped when the command context was canceled.
		if _, err := mgr.SyncStatus(context.WithoutCancel(cmd.Context()), h, p.Last()); err != nil {
			logging.WarnWithContext(logger, "batch status not updated", "batch_status_sync_failed",
				logging.String(logging.FieldBatchID, h.Batch.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "registry status may be stale"))
		}
	}

	if req.jsonOutput {
		if err := writeJSON(cmd, result); err != nil {
			return err
		}
	} else {
		renderRunResult(cmd.OutOrStdout(), result)
	}
	return runError(result)
}

func progressSink(w io.Writer, total int) processing.EventSink {
	return func(evt processing.Event) {
		switch evt.Kind {
		case processing.EventStepStarted:
			fmt.Fprintf(w, "[%d/%d] %s\n", evt.Step, total, stage.Label(evt.StepName))
		case processing.EventProgress:
			if evt.Percent > 0 {
				fmt.Fprintf(w, "      %s (%.0f%%)\n", evt.Message, evt.Percent)
			} else {
				fmt.Fprintf(w, "      %s\n", evt.Message)
			}
		}
	}
}

func renderRunResult(out io.Writer, result *workflow.Result) {
	if len(result.Steps) == 0 {
		fmt.Fprintln(out, "Nothing to run; all steps are complete")
		return
	}
	tbl := tableSpec{
		headers: []string{"Step", "Result", "Duration", "Message"},
		aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	}
	for _, rep := range result.Steps {
		outcome := "ok"
		switch {
		case !rep.Result.Success:
			outcome = "failed"
		case rep.DryRun:
			outcome = "ready"
		}
		tbl.add(stepLabel(rep.Step), outcome, formatDuration(rep.Duration), rep.Result.Message)
	}
	fmt.Fprintln(out, tbl.render())

	switch {
	case result.Canceled:
		fmt.Fprintln(out, "Run canceled")
	case result.HaltedAt > 0:
		fmt.Fprintf(out, "Run halted at step %d\n", result.HaltedAt)
	case result.Success && result.Options.DryRun:
		fmt.Fprintln(out, "Dry run passed")
	case result.Success:
		fmt.Fprintln(out, "Run succeeded")
	default:
		fmt.Fprintf(out, "Run finished with %d failed step(s)\n", len(result.Failed()))
	}
}

func runError(result *workflow.Result) error {
	if result.Success {
		return nil
	}
	if result.Canceled {
		return context.Canceled
	}
	failed := result.Failed()
	if len(failed) == 0 {
		return failure.Wrap(failure.ErrExecution, "pipeline", "run", "run did not succeed", nil)
	}
	first := failed[0]
	return failure.Wrap(failure.ErrExecution, "pipeline", "run",
		fmt.Sprintf("step %d (%s) failed: %s", first.Step.Number, first.Step.Name, first.Result.Message), nil)
}

func newRevertCommand(ctx *commandContext) *cobra.Command {
	var removeArtifacts bool

	cmd := &cobra.Command{
		Use:   "revert <id> <step>",
		Short: "Mark one step incomplete so it runs again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return failure.Wrap(failure.ErrValidation, "cli", "revert",
					fmt.Sprintf("invalid step number %q", args[1]), nil)
			}
			mgr, err := ctx.manager()
			if err != nil {
				return err
			}
			p, err := ctx.pipeline()
			if err != nil {
				return err
			}
			proc, ok := p.Step(n)
			if !ok {
				return failure.Wrap(failure.ErrNotFound, "cli", "revert",
					fmt.Sprintf("no step %d is registered", n), nil)
			}
			h, err := mgr.Open(cmd.Context(), args[0], batchconfig.WithStepCount(p.Last()))
			if err != nil {
				return err
			}

			opts := batchRevertOptions(proc, removeArtifacts)
			if err := mgr.Revert(h, opts); err != nil {
				return err
			}
			if _, err := mgr.SyncStatus(cmd.Context(), h, p.Last()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Step %s marked incomplete\n", stepLabel(stage.Describe(proc)))
			if opts.ArtifactDir != "" {
				fmt.Fprintf(out, "Removed artifacts in %s\n", h.Paths.Dir(opts.ArtifactDir))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&removeArtifacts, "artifacts", false, "Also delete the files the step produced")
	return cmd
}

func batchRevertOptions(proc stage.Processor, removeArtifacts bool) batch.RevertOptions {
	opts := batch.RevertOptions{Step: proc.Number()}
	if !removeArtifacts {
		return opts
	}
	if owner, ok := proc.(stage.ArtifactOwner); ok {
		opts.ArtifactDir = owner.ArtifactDir()
	}
	return opts
}
