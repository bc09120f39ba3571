package workflow

import (
	"context"
	"errors"
)

// Observer receives run lifecycle notifications. Errors are logged by the
// pipeline and never change a run's outcome.
type Observer interface {
	BeforeRun(ctx context.Context, run RunInfo) error
	AfterStep(ctx context.Context, run RunInfo, report StepReport) error
	AfterRun(ctx context.Context, result *Result) error
}

type multiObserver []Observer

// MultiObserver fans notifications out to every non-nil observer in order.
func MultiObserver(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			out = append(out, obs)
		}
	}
	return out
}

func (m multiObserver) BeforeRun(ctx context.Context, run RunInfo) error {
	var errs []error
	for _, obs := range m {
		errs = append(errs, obs.BeforeRun(ctx, run))
	}
	return errors.Join(errs...)
}

func (m multiObserver) AfterStep(ctx context.Context, run RunInfo, report StepReport) error {
	var errs []error
	for _, obs := range m {
		errs = append(errs, obs.AfterStep(ctx, run, report))
	}
	return errors.Join(errs...)
}

func (m multiObserver) AfterRun(ctx context.Context, result *Result) error {
	var errs []error
	for _, obs := range m {
		errs = append(errs, obs.AfterRun(ctx, result))
	}
	return errors.Join(errs...)
}
