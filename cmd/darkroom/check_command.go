package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"darkroom/internal/batch"
	"darkroom/internal/failure"
	"darkroom/internal/registry"
	"darkroom/internal/validate"
)

const checkConcurrency = 4

type checkReport struct {
	Batch  registry.Batch  `json:"batch"`
	Result validate.Result `json:"result"`
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that every registered batch is intact on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.registry()
			if err != nil {
				return err
			}
			batches, err := reg.List(true)
			if err != nil {
				return err
			}

			reports := make([]checkReport, len(batches))
			g, gctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(checkConcurrency)
			for i, b := range batches {
				g.Go(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					reports[i] = checkReport{Batch: b, Result: batch.CheckStructure(b)}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			failed := 0
			var firstFailure string
			for _, rep := range reports {
				if rep.Result.Valid {
					continue
				}
				if failed == 0 {
					firstFailure = rep.Batch.Name + ": " + rep.Result.Summary()
				}
				failed++
			}

			if jsonOutput {
				if err := writeJSON(cmd, reports); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				if len(reports) == 0 {
					fmt.Fprintln(out, "No batches registered")
					return nil
				}
				colorize := shouldColorize(out)
				for _, rep := range reports {
					label := fmt.Sprintf("%s (%s)", rep.Batch.Name, shortID(rep.Batch.ID))
					for _, line := range validationLines(label, rep.Result, colorize) {
						fmt.Fprintln(out, line)
					}
				}
				fmt.Fprintf(out, "%d of %d batch(es) passed\n", len(reports)-failed, len(reports))
			}
			if failed > 0 {
				return failure.Wrap(failure.ErrValidation, "cli", "check",
					fmt.Sprintf("%d batch(es) failed structure checks (first: %s)", failed, firstFailure), nil)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}
