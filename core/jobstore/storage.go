package jobstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage is the durable job backend. All mutation methods are expected
// to execute under transactional authority so that the claim protocol's
// exclusivity and the status state machine's invariants hold even with
// many concurrent workers.
type Storage interface {
	// Enqueue inserts a row with status pending, attempt=1, run_at=now,
	// priority taken from spec.
	Enqueue(ctx context.Context, spec EnqueueSpec) (uuid.UUID, error)

	// Schedule is Enqueue with an explicit run_at instead of now.
	Schedule(ctx context.Context, spec EnqueueSpec, runAt time.Time) (uuid.UUID, error)

	// ClaimReady atomically claims up to limit runnable jobs for
	// workerID: rows where status=pending and run_at<=now, ordered by
	// (priority ASC, run_at ASC), skipping rows already locked by a
	// concurrent claimer. Claimed rows move to status=running with
	// worker_id=workerID and lease_expires_at=now+leaseDuration.
	ClaimReady(ctx context.Context, workerID string, limit int, leaseDuration time.Duration) ([]ClaimedJob, error)

	// MarkSucceeded transitions a running job to the terminal succeeded
	// status. A stale claim (version mismatch with the row's current
	// state) returns ErrStaleClaim and leaves the row untouched.
	MarkSucceeded(ctx context.Context, jobID uuid.UUID, workerID string, version int64) error

	// MarkFailed records an error against a running job and either
	// re-queues it to pending with RetryDelay(attempt) added to run_at,
	// or — once attempt >= max_retries — moves it to dead_letter. A
	// stale claim returns ErrStaleClaim and leaves the row untouched.
	MarkFailed(ctx context.Context, jobID uuid.UUID, workerID string, version int64, errMsg string, kind ErrorKind) error

	// Heartbeat extends a running job's lease. A stale claim returns
	// ErrStaleClaim.
	Heartbeat(ctx context.Context, jobID uuid.UUID, workerID string, version int64, leaseDuration time.Duration) error

	// ReclaimExpired resets running jobs whose lease has expired back to
	// pending, clearing worker_id and lease_expires_at without touching
	// attempt. Returns the number of jobs reclaimed.
	ReclaimExpired(ctx context.Context) (int, error)

	// CleanupSucceeded deletes succeeded jobs last updated before
	// olderThan. Returns the number of rows removed.
	CleanupSucceeded(ctx context.Context, olderThan time.Time) (int, error)

	// Stats reports job counts grouped by status.
	Stats(ctx context.Context) (Stats, error)

	// Get returns the current row for jobID, for observability and
	// tests. Returns ErrJobNotFound if no such job exists.
	Get(ctx context.Context, jobID uuid.UUID) (Job, error)

	// ListDeadLetter returns up to limit dead-lettered jobs, most
	// recently updated first, for operator inspection.
	ListDeadLetter(ctx context.Context, limit int) ([]Job, error)

	// Requeue resets a dead_letter job back to pending with attempt=1
	// and run_at=now, for manual recovery once the underlying cause has
	// been fixed. Returns ErrJobNotFound if jobID is unknown, or an
	// error if the job is not currently dead_letter.
	Requeue(ctx context.Context, jobID uuid.UUID) error
}
