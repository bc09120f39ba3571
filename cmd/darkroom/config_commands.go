package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"darkroom/internal/config"
	"darkroom/internal/failure"
)

// skipConfigLoad marks commands that must work without a loadable config.
var skipConfigLoad = map[string]string{"skipConfigLoad": "true"}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check the darkroom configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write an annotated sample configuration",
		Args:        cobra.NoArgs,
		Annotations: skipConfigLoad,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := sampleTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				_, statErr := os.Stat(target)
				switch {
				case statErr == nil:
					return failure.Wrap(failure.ErrDuplicate, "config", "init",
						fmt.Sprintf("%s already exists; pass --overwrite to replace it", target), nil)
				case !errors.Is(statErr, fs.ErrNotExist):
					return fmt.Errorf("check config path: %w", statErr)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Where to write the file (default: ~/.config/darkroom/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func sampleTarget(flag string) (string, error) {
	if p := strings.TrimSpace(flag); p != "" {
		return config.ExpandPath(p)
	}
	return config.DefaultConfigPath()
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and create the directories it names",
		Args:        cobra.NoArgs,
		Annotations: skipConfigLoad,
		RunE: func(cmd *cobra.Command, args []string) error {
			var flag string
			if ctx.configFlag != nil {
				flag = *ctx.configFlag
			}
			cfg, resolved, exists, err := config.Load(flag)
			if err != nil {
				return failure.Wrap(failure.ErrConfiguration, "config", "validate", "configuration rejected", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			source := resolved
			if !exists {
				source += " (not found, using defaults)"
			}
			tbl := tableSpec{headers: []string{"Setting", "Value"}}
			tbl.add("config", source)
			tbl.add("registry_path", cfg.Paths.RegistryPath)
			tbl.add("data_root", cfg.Paths.DataRoot)
			tbl.add("history_path", cfg.Paths.HistoryPath)
			tbl.add("log_dir", cfg.Paths.LogDir)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tbl.render())
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
