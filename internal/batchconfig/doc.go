// Package batchconfig stores the durable, hierarchical state of a single
// batch: project metadata, step completion flags and step parameters.
//
// The configuration is a tree of tagged values addressed with dot paths such
// as "step_configurations.step7.max_dimension". Reads of missing keys report
// absence instead of failing, writes create intermediate mappings, and Save
// replaces the YAML file atomically so a crash never leaves a half-written
// store behind. Loading a missing or unparsable file falls back to built-in
// defaults and reports what happened through LoadReport.
package batchconfig
