// Package failure defines the error markers shared across darkroom.
//
// Every infrastructure error returned by the registry, the batch
// configuration store and the pipeline is tagged with one of the sentinel
// markers below via Wrap. Callers use errors.Is against the markers, or
// Classify, to tell "fix your input" failures apart from "retry the
// operation" failures without parsing messages.
package failure
