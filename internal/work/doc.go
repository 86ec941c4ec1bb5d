// Package work runs the single-flight worker that keeps the mirror in line with the source.
//
// # Ticks
//
// A ticker fires every TickInterval (5 seconds by default). A tick only does
// work when it acquires the run-lock with TryLock; a tick that finds the lock
// held is skipped and counted. One iteration:
//
//   - offers at most one due poll from the scheduler to the queue
//   - takes at most one due task from the queue
//   - runs its handler under TaskTimeout
//   - classifies the outcome and publishes a Snapshot
//
// # Outcomes
//
// Success removes the task. Transient and persistence failures leave it in
// the queue with one more attempt. A data inconsistency drops it.
//
// # State
//
// Per-track state (source requests, mirror messages, thread, change history)
// lives in memory and is only touched inside an iteration. The database holds
// what is needed to rebuild it after a restart.
package work
