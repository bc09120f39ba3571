// Package stageexec sequences a single step run: input validation,
// execution, output validation and the durable completion flag.
package stageexec
