// Package jobstore is the durability and concurrency heart of the engine:
// a Storage of Job records that survives process restarts, exposes an
// atomic claim protocol safe for any number of concurrent workers, and
// tracks the retry/lease/dead-letter state machine described by the
// engine's job lifecycle.
//
// Job records are created by the dispatcher and mutated exclusively by a
// Storage implementation under transactional authority; nothing else
// writes to a job's status, attempt count, or lease fields directly.
package jobstore

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks a Job's position in the claim/retry/dead-letter state
// machine. pending -> running is the only path into running; succeeded
// and dead_letter are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusSucceeded  Status = "succeeded"
	StatusDeadLetter Status = "dead_letter"
)

// ErrorKind classifies the error recorded on a job's last failed attempt,
// driving whether mark_failed retries the job or dead-letters it.
type ErrorKind string

const (
	ErrorKindRetryable    ErrorKind = "retryable"
	ErrorKindNonRetryable ErrorKind = "non_retryable"
)

// Job is a durable unit of queued work. Field invariants:
//
//   - (WorkerID == nil) iff Status != StatusRunning
//   - LeaseExpiresAt is non-nil iff Status == StatusRunning
//   - Version increases by exactly one on every state write
//   - RunAt gates claimability: a job is claimable only once RunAt <= now
type Job struct {
	ID             uuid.UUID
	JobType        string
	Payload        []byte
	Version        int64
	Status         Status
	Attempt        int
	MaxRetries     int
	Priority       int
	RunAt          time.Time
	WorkerID       *string
	LeaseExpiresAt *time.Time
	ErrorMessage   *string
	ErrorKind      *ErrorKind
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EnqueueSpec carries the fields a caller supplies when creating a job;
// the store fills in ID, Version, Status, Attempt, and the timestamps.
type EnqueueSpec struct {
	JobType    string
	Payload    []byte
	Priority   int
	MaxRetries int
}

// ClaimedJob is the subset of Job fields a worker needs once it has won a
// claim: enough to rehydrate and execute the command, plus the bookkeeping
// fields required to write the result back without a stale read.
type ClaimedJob struct {
	ID       uuid.UUID
	JobType  string
	Payload  []byte
	Version  int64
	Attempt  int
	WorkerID string
}

// Stats reports job counts grouped by status, for observability.
type Stats struct {
	Pending    int64
	Running    int64
	Succeeded  int64
	DeadLetter int64
}
