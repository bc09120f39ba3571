// Package stage defines the contract pipeline steps implement.
//
// A step is a numbered, named Processor with three hooks: input validation,
// execution, and output validation. The package also carries the Result a
// run produces, the optional LoggerAware and ArtifactOwner interfaces, and
// label helpers used when rendering steps.
package stage
