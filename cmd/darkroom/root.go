package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var verbose bool

	ctx := newCommandContext(&configFlag, &verbose)

	root := &cobra.Command{
		Use:           "darkroom",
		Short:         "Run multi-step processing pipelines over registered batches",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path (default: $DARKROOM_CONFIG or ~/.config/darkroom/config.toml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(newBatchCommands(ctx)...)
	root.AddCommand(newRunCommands(ctx)...)
	root.AddCommand(
		newGetCommand(ctx),
		newSetCommand(ctx),
		newHistoryCommand(ctx),
		newCheckCommand(ctx),
		newStepsCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}
