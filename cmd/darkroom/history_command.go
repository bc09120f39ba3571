package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"darkroom/internal/failure"
	"darkroom/internal/runlog"
	"darkroom/internal/stage"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show recorded pipeline runs for a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.registry()
			if err != nil {
				return err
			}
			b, err := reg.Resolve(args[0])
			if err != nil {
				return err
			}
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			if id := strings.TrimSpace(runID); id != "" {
				return showRun(cmd, store, b.ID, id, jsonOutput)
			}

			runs, err := store.Runs(cmd.Context(), b.ID, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				if runs == nil {
					runs = []runlog.Run{}
				}
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintf(out, "No runs recorded for %s\n", b.Name)
				return nil
			}
			tbl := tableSpec{
				headers: []string{"Run", "Started", "Steps", "Mode", "Result", "Duration"},
				aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
			}
			for _, run := range runs {
				duration := "-"
				if run.FinishedAt != nil {
					duration = formatDuration(run.FinishedAt.Sub(run.StartedAt))
				}
				tbl.add(shortID(run.RunID), formatTime(run.StartedAt), fmt.Sprintf("%d-%d", run.FirstStep, run.LastStep),
					runMode(run), runOutcome(run), duration)
			}
			fmt.Fprintln(out, tbl.render())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show the steps of one run (id or prefix)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func showRun(cmd *cobra.Command, store *runlog.Store, batchID, ref string, jsonOutput bool) error {
	match, err := findRun(cmd.Context(), store, batchID, ref)
	if err != nil {
		return err
	}
	records, err := store.Steps(cmd.Context(), match.RunID)
	if err != nil {
		return err
	}
	if jsonOutput {
		if records == nil {
			records = []runlog.StepRecord{}
		}
		return writeJSON(cmd, struct {
			runlog.Run
			Steps []runlog.StepRecord `json:"steps"`
		}{Run: match, Steps: records})
	}
	renderRunSteps(cmd.OutOrStdout(), match, records)
	return nil
}

// findRun resolves a full run id or a unique prefix among the batch's runs.
func findRun(ctx context.Context, store *runlog.Store, batchID, ref string) (runlog.Run, error) {
	if run, ok, err := store.GetRun(ctx, ref); err != nil {
		return runlog.Run{}, err
	} else if ok && run.BatchID == batchID {
		return run, nil
	}
	runs, err := store.Runs(ctx, batchID, 0)
	if err != nil {
		return runlog.Run{}, err
	}
	var matches []runlog.Run
	for _, run := range runs {
		if strings.HasPrefix(run.RunID, ref) {
			matches = append(matches, run)
		}
	}
	switch len(matches) {
	case 0:
		return runlog.Run{}, failure.Wrap(failure.ErrNotFound, "cli", "history", fmt.Sprintf("run %q not found", ref), nil)
	case 1:
		return matches[0], nil
	default:
		return runlog.Run{}, failure.Wrap(failure.ErrValidation, "cli", "history",
			fmt.Sprintf("run prefix %q matches %d runs", ref, len(matches)), nil)
	}
}

func renderRunSteps(out io.Writer, run runlog.Run, records []runlog.StepRecord) {
	fmt.Fprintf(out, "Run %s started %s (%s, %s)\n", run.RunID, formatTime(run.StartedAt), runMode(run), runOutcome(run))
	tbl := tableSpec{
		headers: []string{"Step", "Result", "Duration", "Message"},
		aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	}
	for _, rec := range records {
		outcome := "failed"
		if rec.Success {
			outcome = "ok"
		}
		tbl.add(stepLabel(stepDefinition(rec)), outcome, formatDuration(rec.Duration), rec.Message)
	}
	fmt.Fprintln(out, tbl.render())
}

func runMode(run runlog.Run) string {
	if run.DryRun {
		return "dry-run"
	}
	return "run"
}

func runOutcome(run runlog.Run) string {
	switch {
	case !run.Finished():
		return "interrupted"
	case run.Canceled:
		return "canceled"
	case run.HaltedAt > 0:
		return fmt.Sprintf("halted at %d", run.HaltedAt)
	case run.Success != nil && *run.Success:
		return "ok"
	default:
		return "failed"
	}
}

func stepDefinition(rec runlog.StepRecord) stage.Definition {
	return stage.Definition{Number: rec.Step, Name: rec.Name}
}
