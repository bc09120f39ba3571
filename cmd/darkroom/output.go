package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"darkroom/internal/batchconfig"
	"darkroom/internal/stage"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func stepLabel(def stage.Definition) string {
	return stage.NumberedLabel(def)
}

func progressText(cfg *batchconfig.Config) string {
	total := cfg.StepCount()
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", len(cfg.CompletedSteps()), total)
}

// formatValue renders a configuration value for terminal output. Scalars are
// printed bare, mappings and lists as YAML.
func formatValue(v batchconfig.Value) (string, error) {
	native := v.Native()
	switch native.(type) {
	case map[string]any, []any:
		data, err := yaml.Marshal(native)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(data), "\n"), nil
	default:
		return fmt.Sprint(native), nil
	}
}

// parseValue interprets a command-line value with YAML scalar rules, so
// "90" is an integer, "true" a boolean and "[a, b]" a list.
func parseValue(raw string) (any, error) {
	var out any
	if err := yaml.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("parse value %q: %w", raw, err)
	}
	if out == nil {
		return raw, nil
	}
	return out, nil
}
