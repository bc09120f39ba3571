// Package registry maintains the shared index of batches.
//
// The index is one JSON file holding every known batch keyed by id. Many
// processes may use it at once: every mutation takes an exclusive advisory
// lock on a sidecar ".lock" file within a bounded wait, re-reads the index,
// applies the change and replaces the file atomically before unlocking.
// Readers never lock; the atomic replace guarantees they see either the old
// or the new index in full.
//
// Unregistering a batch only removes it from the index. Batch data
// directories and configuration files are never touched here.
package registry
