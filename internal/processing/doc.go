// Package processing defines the per-run context handed to every pipeline
// step.
//
// A Context bundles the batch configuration handle, a resolver for the
// batch's named subdirectories, a logger, the current step number and a
// shared-data map that lets earlier steps hand artifacts to later ones.
// Progress is reported through an optional event sink so the pipeline's
// blocking call model stays independent of how a caller renders updates.
//
// A Context belongs to one pipeline run at a time and is not safe for
// concurrent mutation.
package processing
