package runlog

import "time"

// Run is one recorded pipeline run.
type Run struct {
	RunID       string     `json:"run_id"`
	BatchID     string     `json:"batch_id"`
	FirstStep   int        `json:"first_step"`
	LastStep    int        `json:"last_step"`
	DryRun      bool       `json:"dry_run"`
	StopOnError bool       `json:"stop_on_error"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Success     *bool      `json:"success,omitempty"`
	HaltedAt    int        `json:"halted_at,omitempty"`
	Canceled    bool       `json:"canceled,omitempty"`
}

// Finished reports whether the run recorded its outcome. A run without one
// was interrupted.
func (r Run) Finished() bool {
	return r.FinishedAt != nil
}

// StepRecord is one step's outcome within a run.
type StepRecord struct {
	RunID     string        `json:"run_id"`
	Step      int           `json:"step"`
	Name      string        `json:"name"`
	Success   bool          `json:"success"`
	Message   string        `json:"message,omitempty"`
	DryRun    bool          `json:"dry_run,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
