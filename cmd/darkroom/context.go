package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"darkroom/internal/batch"
	"darkroom/internal/config"
	"darkroom/internal/logging"
	"darkroom/internal/registry"
	"darkroom/internal/runlog"
	"darkroom/internal/steps"
	"darkroom/internal/workflow"
)

// commandContext carries the global flags and lazily built dependencies
// shared by every subcommand of one invocation.
type commandContext struct {
	configFlag *string
	verbose    *bool

	ensureConfig func() (*config.Config, error)
	ensureLogger func() (*slog.Logger, error)
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	c := &commandContext{configFlag: configFlag, verbose: verbose}
	c.ensureConfig = sync.OnceValues(c.loadConfig)
	c.ensureLogger = sync.OnceValues(c.buildLogger)
	return c
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	var path string
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if c.verbose != nil && *c.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *commandContext) buildLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return logger, nil
}

func (c *commandContext) registry() (*registry.Registry, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return registry.FromConfig(cfg, logger), nil
}

func (c *commandContext) manager() (*batch.Manager, error) {
	reg, err := c.registry()
	if err != nil {
		return nil, err
	}
	cfg, _ := c.ensureConfig()
	logger, _ := c.ensureLogger()
	return batch.NewManager(cfg, reg, logger), nil
}

// pipeline builds the step pipeline with the built-in steps registered.
func (c *commandContext) pipeline(observers ...workflow.Observer) (*workflow.Pipeline, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	p := workflow.New(workflow.WithLogger(logger), workflow.WithObserver(observers...))
	if err := steps.Register(p); err != nil {
		return nil, err
	}
	return p, nil
}

// openHistory opens the run journal. Callers close it.
func (c *commandContext) openHistory() (*runlog.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := runlog.OpenConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	return store, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
