// Package batch ties the registry, the per-batch configuration file and the
// data directory layout together.
//
// Init creates a data directory with its standard subdirectories, writes the
// initial configuration and registers the batch. Open resolves a batch from
// the registry, loads its configuration and records the access. Revert
// clears one step's completion flag and can remove the artifacts that step
// produced. CheckStructure reports on the health of a batch on disk.
package batch
