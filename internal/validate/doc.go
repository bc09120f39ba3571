// Package validate provides the pass/fail primitive used by steps, the
// batch configuration store and the registry.
//
// A Result carries a validity flag plus ordered errors and warnings. The
// check functions are stateless: each inspects the filesystem or a value and
// returns a Result that callers combine with Merge.
package validate
