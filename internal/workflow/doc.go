// Package workflow drives a batch through its registered pipeline steps.
//
// A Pipeline holds numbered stage.Processor implementations and runs any
// contiguous range of them in ascending order against one
// processing.Context. Each step goes through stageexec.Run, so a step's
// completion flag is durable before the next step starts. Runs can stop at
// the first failure or continue past it, can be dry-run (input validation
// only), and can resume from the first incomplete step recorded in the batch
// configuration. Cancellation is honoured between steps; a step that has
// started always finishes.
//
// Observers receive run and step notifications; the run journal in
// internal/runlog is one.
package workflow
