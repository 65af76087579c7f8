// Package seesaw is an in-process coordination layer that separates
// facts (events) from intent (commands). Pure decision components
// (machines) observe events and may produce commands; effects execute
// commands, perform I/O, and emit new events. A dispatcher routes each
// command either inline or onto a durable job queue; a worker pool
// re-executes queued commands with leases, retries, and a dead-letter
// terminal state.
//
// # Package Organization
//
//	core/event      - publish/subscribe event bus
//	core/command    - command/job-spec/execution-mode domain types
//	core/machine    - pure event-to-command decision functions
//	core/effect     - command-executing I/O boundary
//	core/dispatcher - routes commands to effects or the job store
//	core/jobstore   - durable job records, claim/retry/lease/dead-letter
//	core/worker     - claims and executes queued jobs
//	core/engine     - builder + runtime wiring every component together
//	core/config     - type-safe environment variable loading
//	core/logger     - structured logging built on log/slog
//	core/health     - dependency healthcheck aggregation
//
//	integration/database/pg         - pgxpool connection/migration/healthcheck
//	core/jobstore/postgres          - Storage backed by Postgres
//
// See DESIGN.md for how each package's implementation is grounded, and
// SPEC_FULL.md for the full specification this module implements.
package seesaw
