package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"darkroom/internal/stage"
)

func newStepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "steps",
		Short: "List the registered pipeline steps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.pipeline()
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, p.Definitions())
			}
			tbl := tableSpec{headers: []string{"Step", "Settings Key", "Artifacts"}}
			for _, proc := range p.Processors() {
				artifacts := "-"
				if owner, ok := proc.(stage.ArtifactOwner); ok {
					artifacts = owner.ArtifactDir() + "/"
				}
				tbl.add(stepLabel(stage.Describe(proc)), fmt.Sprintf("step_configurations.step%d", proc.Number()), artifacts)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tbl.render())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}
