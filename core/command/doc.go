// Package command defines the polymorphic unit of intent that a Machine's
// Decide produces and a Dispatcher routes: Command.
//
// A Command carries an ExecutionMode describing how it should run:
//
//   - Inline runs on the caller's task immediately; no JobSpec allowed.
//   - Background enqueues a job runnable as soon as a worker claims it.
//   - Scheduled enqueues a job claimable only once its RunAt has passed.
//
// Background and Scheduled commands require a JobSpec naming a stable
// job_type string, a claim priority, and a max-retry bound. The Registry
// in this package maps job_type back to a Deserializer so a job store
// record — opaque bytes plus a job_type string — can be rehydrated into
// the original command payload after a crash or on another worker.
//
// This package has no knowledge of Machines, Effects, or the job store;
// see core/machine, core/effect, core/dispatcher, and core/jobstore.
package command
