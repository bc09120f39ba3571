package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"darkroom/internal/batch"
	"darkroom/internal/batchconfig"
	"darkroom/internal/registry"
	"darkroom/internal/stage"
)

func newBatchCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newInitCommand(ctx),
		newListCommand(ctx),
		newShowCommand(ctx),
		newStatusCommand(ctx),
		newUnregisterCommand(ctx),
	}
}

func newInitCommand(ctx *commandContext) *cobra.Command {
	var dataDir string
	var sourceDir string
	var prefix string
	var strict bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "init <name>",
		Short: "Create and register a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := ctx.manager()
			if err != nil {
				return err
			}
			p, err := ctx.pipeline()
			if err != nil {
				return err
			}

			opts := batch.InitOptions{
				Name:         args[0],
				DataDir:      dataDir,
				StepCount:    p.Last(),
				StepSettings: map[int]map[string]any{},
			}
			if cmd.Flags().Changed("strict") {
				opts.StrictMode = &strict
			}
			if s := strings.TrimSpace(sourceDir); s != "" {
				opts.StepSettings[1] = map[string]any{"source_dir": s}
			}
			if s := strings.TrimSpace(prefix); s != "" {
				opts.StepSettings[3] = map[string]any{"prefix": s}
			}

			h, err := mgr.Init(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, h.Batch)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Batch %s registered as %s\n", h.Batch.Name, h.Batch.ID)
			fmt.Fprintf(out, "Data directory: %s\n", h.Batch.DataDirectory)
			if h.Report.Exists {
				fmt.Fprintln(out, "Existing configuration kept")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "dir", "", "Data directory (default: <data_root>/<name>)")
	cmd.Flags().StringVar(&sourceDir, "source", "", "Directory the ingest step reads images from")
	cmd.Flags().StringVar(&prefix, "prefix", "", "File name prefix used by the export step")
	cmd.Flags().BoolVar(&strict, "strict", false, "Treat validation warnings as errors")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var includeArchived bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.registry()
			if err != nil {
				return err
			}
			batches, err := reg.List(includeArchived)
			if err != nil {
				return err
			}

			type listEntry struct {
				registry.Batch
				CompletedSteps []int `json:"completed_steps"`
				StepCount      int   `json:"step_count"`
			}
			entries := make([]listEntry, 0, len(batches))
			progress := make([]string, 0, len(batches))
			for _, b := range batches {
				entry := listEntry{Batch: b, CompletedSteps: []int{}}
				cfg, report, err := batchconfig.Load(b.ConfigPath)
				switch {
				case err != nil || report.Corrupt:
					progress = append(progress, "?")
				case !report.Exists:
					progress = append(progress, "missing")
				default:
					entry.CompletedSteps = cfg.CompletedSteps()
					entry.StepCount = cfg.StepCount()
					progress = append(progress, progressText(cfg))
				}
				entries = append(entries, entry)
			}

			if jsonOutput {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(batches) == 0 {
				fmt.Fprintln(out, "No batches registered")
				return nil
			}
			tbl := tableSpec{
				headers: []string{"ID", "Name", "Status", "Steps", "Last Accessed", "Data Directory"},
				aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			}
			for i, b := range batches {
				tbl.add(shortID(b.ID), b.Name, string(b.Status), progress[i], formatTime(b.LastAccessed), b.DataDirectory)
			}
			fmt.Fprintln(out, tbl.render())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&includeArchived, "all", "a", false, "Include archived batches")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a batch and its step progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := ctx.manager()
			if err != nil {
				return err
			}
			p, err := ctx.pipeline()
			if err != nil {
				return err
			}
			h, err := mgr.Open(cmd.Context(), args[0], batchconfig.WithStepCount(p.Last()))
			if err != nil {
				return err
			}
			next, pending := h.Config.NextIncompleteStep()

			if jsonOutput {
				type stepView struct {
					Number    int    `json:"number"`
					Name      string `json:"name"`
					Completed bool   `json:"completed"`
				}
				view := struct {
					registry.Batch
					StrictMode bool           `json:"strict_mode"`
					Steps      []stepView     `json:"steps"`
					NextStep   int            `json:"next_step,omitempty"`
					Config     map[string]any `json:"config"`
				}{Batch: h.Batch, StrictMode: h.Config.StrictMode(), Config: h.Config.Snapshot()}
				for _, def := range p.Definitions() {
					view.Steps = append(view.Steps, stepView{Number: def.Number, Name: def.Name, Completed: h.Config.StepCompleted(def.Number)})
				}
				if pending {
					view.NextStep = next
				}
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader(h.Batch.Name, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "ID:             %s\n", h.Batch.ID)
			fmt.Fprintf(out, "Status:         %s\n", h.Batch.Status)
			fmt.Fprintf(out, "Data directory: %s\n", h.Batch.DataDirectory)
			fmt.Fprintf(out, "Config:         %s\n", h.Batch.ConfigPath)
			fmt.Fprintf(out, "Created:        %s\n", formatTime(h.Batch.Created))
			fmt.Fprintf(out, "Strict mode:    %s\n", yesNo(h.Config.StrictMode()))
			if h.Report.Corrupt {
				fmt.Fprintf(out, "Warning:        %s\n", h.Report.Warning)
			}
			fmt.Fprintln(out)

			tbl := tableSpec{headers: []string{"Step", "Completed"}}
			for _, def := range p.Definitions() {
				tbl.add(stepLabel(def), yesNo(h.Config.StepCompleted(def.Number)))
			}
			fmt.Fprintln(out, tbl.render())
			if pending {
				if proc, ok := p.Step(next); ok {
					fmt.Fprintf(out, "Next step: %s\n", stepLabel(stage.Describe(proc)))
				}
			} else {
				fmt.Fprintln(out, "All steps complete")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <active|completed|archived>",
		Short: "Change the lifecycle status of a batch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.registry()
			if err != nil {
				return err
			}
			b, err := reg.Resolve(args[0])
			if err != nil {
				return err
			}
			status, err := registry.ParseStatus(args[1])
			if err != nil {
				return err
			}
			if err := reg.UpdateStatus(cmd.Context(), b.ID, status); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Batch %s is %s\n", shortID(b.ID), status)
			return nil
		},
	}
}

func newUnregisterCommand(ctx *commandContext) *cobra.Command {
	var purgeHistory bool

	cmd := &cobra.Command{
		Use:   "unregister <id>",
		Short: "Remove a batch from the registry without deleting its files",
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
			if err := reg.Unregister(cmd.Context(), b.ID); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Batch %s unregistered; files remain in %s\n", shortID(b.ID), b.DataDirectory)

			if !purgeHistory {
				return nil
			}
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.DeleteBatch(cmd.Context(), b.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed %d run(s) from history\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&purgeHistory, "purge-history", false, "Also delete the batch's run history")
	return cmd
}
