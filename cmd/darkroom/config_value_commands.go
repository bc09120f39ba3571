package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"darkroom/internal/batchconfig"
	"darkroom/internal/failure"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get <id> <key>",
		Short: "Read a batch configuration value by dot path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadBatchConfig(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			key := strings.TrimSpace(args[1])
			value, ok := cfg.Lookup(key)
			if !ok {
				return failure.Wrap(failure.ErrNotFound, "cli", "get", fmt.Sprintf("key %q is not set", key), nil)
			}
			if jsonOutput {
				return writeJSON(cmd, map[string]any{"key": key, "value": value.Native()})
			}
			text, err := formatValue(value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <key> <value>",
		Short: "Write a batch configuration value by dot path",
		Long: "Write a batch configuration value by dot path.\n\n" +
			"Values follow YAML scalar rules: 90 is an integer, true a boolean and\n" +
			"[a, b] a list. Completion flags can only be cleared; use revert.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, report, err := loadBatchConfig(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			if report.Corrupt {
				return failure.Wrap(failure.ErrConfigCorruption, "cli", "set",
					fmt.Sprintf("%s is unreadable; repair it before editing (backup at %s)", report.Path, report.BackupPath), nil)
			}
			key := strings.TrimSpace(args[1])
			value, err := parseValue(args[2])
			if err != nil {
				return failure.Wrap(failure.ErrValidation, "cli", "set", "", err)
			}
			if err := guardCompletionFlag(key, value); err != nil {
				return err
			}
			if err := cfg.Set(key, value); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			stored, _ := cfg.Lookup(key)
			text, err := formatValue(stored)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, text)
			return nil
		},
	}
}

// guardCompletionFlag rejects writes that would mark a step complete without
// running it.
func guardCompletionFlag(key string, value any) error {
	if key != batchconfig.KeyStepsCompleted && !strings.HasPrefix(key, batchconfig.KeyStepsCompleted+".") {
		return nil
	}
	if flag, ok := value.(bool); ok && !flag && key != batchconfig.KeyStepsCompleted {
		return nil
	}
	return failure.Wrap(failure.ErrValidation, "cli", "set",
		"completion flags are set by running a step; only false may be written", nil)
}

// loadBatchConfig opens the batch through the manager so the access is
// recorded in the registry like any other open.
func loadBatchConfig(cmd *cobra.Command, ctx *commandContext, ref string) (*batchconfig.Config, batchconfig.LoadReport, error) {
	mgr, err := ctx.manager()
	if err != nil {
		return nil, batchconfig.LoadReport{}, err
	}
	h, err := mgr.Open(cmd.Context(), ref)
	if err != nil {
		return nil, batchconfig.LoadReport{}, err
	}
	return h.Config, h.Report, nil
}
