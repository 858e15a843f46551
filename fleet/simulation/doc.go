// Package simulation executes the rental schedule.
//
// The package implements:
//   - Executor, the task that drives one rental and writes its invoice
//   - Scheduler, which groups rentals by start time and runs each group
//     concurrently behind a barrier
//   - FaultCollector, the per-run list of broken-down vehicles
//   - Pipeline, which loads inputs, runs the schedule, re-reads the
//     invoices and writes the reports
//
// Concurrency Model:
//
// Rentals that share a start time form a batch. Every rental in a batch runs
// in its own goroutine on its own vehicle copy, so workers share nothing but
// the invoice counter and the fault collector, both safe for concurrent use.
// The scheduler waits for every worker of a batch before it looks at the
// results, pauses, and starts the next batch. Batches never overlap.
//
// A worker that fails or panics is recorded as a failed result and logged;
// its siblings keep running. Cancelling the run context stops in-flight
// trips at their next pause and no further batches are started.
package simulation
