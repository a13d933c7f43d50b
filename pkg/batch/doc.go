// Package batch runs bounded-concurrency bulk operations with per-item
// retry and isolation.
//
// An Executor caps how many runs execute at once across the process; each
// run gets its own worker pool sized by Config.MaxWorkers. Items are
// dispatched in chunks so cancellation can be observed between chunks
// without interrupting items already in flight. A failing item records its
// error and never aborts the rest of the run.
package batch
