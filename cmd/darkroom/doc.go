// Package main hosts the darkroom CLI entrypoint and command graph.
//
// The Cobra command tree creates and opens batches, drives the step pipeline
// over them, edits batch configuration values and reads the run journal. It
// centralizes configuration resolution, registry access and logger setup so
// subcommands only deal with presentation.
//
// Functionality belongs in the internal packages first; commands here parse
// flags, call into them and render the result.
package main
