package workflow

import (
	"fmt"
	"time"

	"darkroom/internal/failure"
	"darkroom/internal/stage"
)

// ErrContextBusy is returned when a processing context is already owned by
// another run.
var ErrContextBusy = fmt.Errorf("%w: processing context already running", failure.ErrContention)

// Options selects the steps of a run and how failures are handled.
type Options struct {
	// Start and End bound the run, inclusive. Zero means the first or last
	// registered step.
	Start int `json:"start"`
	End   int `json:"end"`
	// StopOnError halts the run at the first failed step.
	StopOnError bool `json:"stop_on_error"`
	// DryRun evaluates input validation only.
	DryRun bool `json:"dry_run"`
}

// DefaultOptions runs every step and stops at the first failure.
func DefaultOptions() Options {
	return Options{StopOnError: true}
}

// RunInfo identifies one pipeline run.
type RunInfo struct {
	RunID   string    `json:"run_id"`
	BatchID string    `json:"batch_id"`
	Options Options   `json:"options"`
	Start   int       `json:"first_step"`
	End     int       `json:"last_step"`
	Started time.Time `json:"started"`
}

// StepReport is the outcome of one step within a run.
type StepReport struct {
	Step     stage.Definition `json:"step"`
	Result   stage.Result     `json:"result"`
	DryRun   bool             `json:"dry_run,omitempty"`
	Started  time.Time        `json:"started"`
	Duration time.Duration    `json:"duration"`
}

// Result summarises a pipeline run.
type Result struct {
	RunInfo
	Steps    []StepReport `json:"steps"`
	Success  bool         `json:"success"`
	HaltedAt int          `json:"halted_at,omitempty"`
	Canceled bool         `json:"canceled,omitempty"`
	Finished time.Time    `json:"finished"`
}

// Failed returns the reports of steps that did not succeed.
func (r *Result) Failed() []StepReport {
	var out []StepReport
	for _, rep := range r.Steps {
		if !rep.Result.Success {
			out = append(out, rep)
		}
	}
	return out
}

// Report returns the report for step n, if it ran.
func (r *Result) Report(n int) (StepReport, bool) {
	for _, rep := range r.Steps {
		if rep.Step.Number == n {
			return rep, true
		}
	}
	return StepReport{}, false
}
