package stage

import (
	"context"
	"fmt"
	"log/slog"

	"darkroom/internal/processing"
	"darkroom/internal/validate"
)

// Processor describes the contract the pipeline needs from each step.
//
// Implementations supply the three hooks; the run contract that sequences
// them and records completion lives in stageexec and cannot be overridden.
type Processor interface {
	Number() int
	Name() string
	ValidateInputs(context.Context, *processing.Context) validate.Result
	Execute(context.Context, *processing.Context) (Result, error)
	ValidateOutputs(context.Context, *processing.Context) validate.Result
}

// LoggerAware processors receive the step-scoped logger before each run.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// ArtifactOwner processors declare the data subdirectory their run writes,
// so a revert can remove it.
type ArtifactOwner interface {
	ArtifactDir() string
}

// Result is the outcome of one step run.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`

	// Err carries the underlying cause of a failure for classification.
	Err error `json:"-"`
}

// Succeeded builds a successful Result.
func Succeeded(message string, payload map[string]any) Result {
	return Result{Success: true, Message: message, Payload: payload}
}

// Failed builds a failed Result with a formatted message.
func Failed(format string, args ...any) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// FailedWith builds a failed Result that keeps err as its cause.
func FailedWith(err error, format string, args ...any) Result {
	res := Failed(format, args...)
	res.Err = err
	return res
}

// Definition identifies a step.
type Definition struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

// Describe returns the Definition of p.
func Describe(p Processor) Definition {
	return Definition{Number: p.Number(), Name: p.Name()}
}
