// Package queue persists voice build items in a SQLite database.
//
// The store is opened in WAL mode with a single writer connection. Busy
// errors from concurrent access are retried with capped exponential
// backoff. Item status moves through the pipeline lifecycle: pending,
// fetching, fetched, preparing, prepared, transcribing, transcribed,
// training, trained, exporting, completed, with failed and review as
// off-ramp states.
package queue
