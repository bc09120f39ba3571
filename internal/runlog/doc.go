// Package runlog records pipeline run history in SQLite.
//
// The Store implements workflow.Observer: attach it to a Pipeline and every
// run, with the outcome of each step it touched, lands in the history
// database. The run journal is informational. Step completion itself is
// always read from the batch configuration, never from here.
//
// Schema changes bump schemaVersion; an older database must be deleted to
// adopt the new layout.
package runlog
