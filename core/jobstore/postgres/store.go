package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/seesaw/core/jobstore"
	"github.com/dmitrymomot/seesaw/integration/database/pg"
)

// querier is the subset of pgx's pool and transaction types Store needs.
// Both *pgxpool.Pool and pgx.Tx satisfy it, which lets ClaimReady and
// MarkFailed run against either a pool-owned transaction or one a caller
// supplied via pg.WithTx — e.g. to fold a claim or a failure record into
// a larger transaction the caller already holds. Enqueue and Schedule
// always run on the pool.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a jobstore.Storage backed by PostgreSQL. All mutating
// operations run inside their own transaction so the claim protocol's
// exclusivity holds across any number of concurrently polling workers.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pool. Callers are expected to have run
// pg.Migrate with postgres.Migrations beforehand.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Enqueue implements jobstore.Storage.
func (s *Store) Enqueue(ctx context.Context, spec jobstore.EnqueueSpec) (uuid.UUID, error) {
	return s.Schedule(ctx, spec, time.Now())
}

// Schedule implements jobstore.Storage.
func (s *Store) Schedule(ctx context.Context, spec jobstore.EnqueueSpec, runAt time.Time) (uuid.UUID, error) {
	id := uuid.New()
	const q = `
		INSERT INTO jobs (id, job_type, payload, version, status, attempt, max_retries, priority, run_at, created_at, updated_at)
		VALUES ($1, $2, $3, 1, 'pending', 1, $4, $5, $6, now(), now())`

	_, err := s.pool.Exec(ctx, q, id, spec.JobType, spec.Payload, spec.MaxRetries, spec.Priority, runAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("jobstore/postgres: enqueue: %w", err)
	}
	return id, nil
}

// ClaimReady implements jobstore.Storage using SELECT ... FOR UPDATE
// SKIP LOCKED so concurrent claimers never block on, or double-claim,
// the same row. If ctx carries a transaction via pg.WithTx, the claim
// runs inside it instead of opening its own — the caller owns the
// commit/rollback boundary in that case.
func (s *Store) ClaimReady(ctx context.Context, workerID string, limit int, leaseDuration time.Duration) ([]jobstore.ClaimedJob, error) {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return s.claimReady(ctx, tx, workerID, limit, leaseDuration)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("jobstore/postgres: claim_ready: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	claimed, err := s.claimReady(ctx, tx, workerID, limit, leaseDuration)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("jobstore/postgres: claim_ready: commit: %w", err)
	}
	return claimed, nil
}

func (s *Store) claimReady(ctx context.Context, q querier, workerID string, limit int, leaseDuration time.Duration) ([]jobstore.ClaimedJob, error) {
	const selectQ = `
		SELECT id, job_type, payload, version, attempt
		FROM jobs
		WHERE status = 'pending' AND run_at <= now()
		ORDER BY priority ASC, run_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	rows, err := q.Query(ctx, selectQ, limit)
	if err != nil {
		return nil, fmt.Errorf("jobstore/postgres: claim_ready: select: %w", err)
	}

	type row struct {
		id      uuid.UUID
		jobType string
		payload []byte
		version int64
		attempt int
	}
	var candidates []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.jobType, &r.payload, &r.version, &r.attempt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("jobstore/postgres: claim_ready: scan: %w", err)
		}
		candidates = append(candidates, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("jobstore/postgres: claim_ready: rows: %w", err)
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}

	lease := time.Now().Add(leaseDuration)
	const updateQ = `
		UPDATE jobs
		SET status = 'running', worker_id = $1, lease_expires_at = $2, version = version + 1, updated_at = now()
		WHERE id = ANY($3)`

	if _, err := q.Exec(ctx, updateQ, workerID, lease, ids); err != nil {
		return nil, fmt.Errorf("jobstore/postgres: claim_ready: update: %w", err)
	}

	claimed := make([]jobstore.ClaimedJob, len(candidates))
	for i, c := range candidates {
		claimed[i] = jobstore.ClaimedJob{
			ID:       c.id,
			JobType:  c.jobType,
			Payload:  c.payload,
			Version:  c.version + 1,
			Attempt:  c.attempt,
			WorkerID: workerID,
		}
	}
	return claimed, nil
}

// MarkSucceeded implements jobstore.Storage.
func (s *Store) MarkSucceeded(ctx context.Context, jobID uuid.UUID, workerID string, version int64) error {
	const q = `
		UPDATE jobs
		SET status = 'succeeded', worker_id = NULL, lease_expires_at = NULL, version = version + 1, updated_at = now()
		WHERE id = $1 AND worker_id = $2 AND version = $3 AND status = 'running'`

	tag, err := s.pool.Exec(ctx, q, jobID, workerID, version)
	if err != nil {
		return fmt.Errorf("jobstore/postgres: mark_succeeded: %w", err)
	}
	return s.fencingResult(ctx, jobID, tag.RowsAffected())
}

// MarkFailed implements jobstore.Storage. The retry-vs-dead_letter branch
// is decided in markFailed; the exact backoff formula lives in
// jobstore.RetryDelay, shared with the in-memory implementation so the
// two cannot drift apart on the deterministic-backoff testable property. If ctx carries a transaction
// via pg.WithTx, the update runs inside it instead of opening its own —
// the caller owns the commit/rollback boundary in that case.
func (s *Store) MarkFailed(ctx context.Context, jobID uuid.UUID, workerID string, version int64, errMsg string, kind jobstore.ErrorKind) error {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return s.markFailed(ctx, tx, jobID, workerID, version, errMsg, kind)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("jobstore/postgres: mark_failed: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.markFailed(ctx, tx, jobID, workerID, version, errMsg, kind); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("jobstore/postgres: mark_failed: commit: %w", err)
	}
	return nil
}

func (s *Store) markFailed(ctx context.Context, q querier, jobID uuid.UUID, workerID string, version int64, errMsg string, kind jobstore.ErrorKind) error {
	const selectQ = `SELECT attempt, max_retries FROM jobs WHERE id = $1 AND worker_id = $2 AND version = $3 AND status = 'running' FOR UPDATE`
	var attempt, maxRetries int
	err := q.QueryRow(ctx, selectQ, jobID, workerID, version).Scan(&attempt, &maxRetries)
	if pg.IsNotFoundError(err) {
		return jobstore.ErrStaleClaim
	}
	if err != nil {
		return fmt.Errorf("jobstore/postgres: mark_failed: select: %w", err)
	}

	if kind == jobstore.ErrorKindNonRetryable || attempt >= maxRetries {
		const updateQ = `
			UPDATE jobs
			SET status = 'dead_letter', worker_id = NULL, lease_expires_at = NULL,
			    error_message = $1, error_kind = $2, version = version + 1, updated_at = now()
			WHERE id = $3`
		if _, err := q.Exec(ctx, updateQ, errMsg, string(kind), jobID); err != nil {
			return fmt.Errorf("jobstore/postgres: mark_failed: dead_letter: %w", err)
		}
		return nil
	}

	runAt := time.Now().Add(jobstore.RetryDelay(attempt))
	const updateQ = `
		UPDATE jobs
		SET status = 'pending', worker_id = NULL, lease_expires_at = NULL,
		    attempt = attempt + 1, run_at = $1,
		    error_message = $2, error_kind = $3, version = version + 1, updated_at = now()
		WHERE id = $4`
	if _, err := q.Exec(ctx, updateQ, runAt, errMsg, string(kind), jobID); err != nil {
		return fmt.Errorf("jobstore/postgres: mark_failed: retry: %w", err)
	}
	return nil
}

// Heartbeat implements jobstore.Storage.
func (s *Store) Heartbeat(ctx context.Context, jobID uuid.UUID, workerID string, version int64, leaseDuration time.Duration) error {
	const q = `
		UPDATE jobs
		SET lease_expires_at = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND worker_id = $3 AND version = $4 AND status = 'running'`

	tag, err := s.pool.Exec(ctx, q, time.Now().Add(leaseDuration), jobID, workerID, version)
	if err != nil {
		return fmt.Errorf("jobstore/postgres: heartbeat: %w", err)
	}
	return s.fencingResult(ctx, jobID, tag.RowsAffected())
}

func (s *Store) fencingResult(ctx context.Context, jobID uuid.UUID, rowsAffected int64) error {
	if rowsAffected == 0 {
		if _, err := s.Get(ctx, jobID); err != nil {
			return err
		}
		return jobstore.ErrStaleClaim
	}
	return nil
}

// ReclaimExpired implements jobstore.Storage.
func (s *Store) ReclaimExpired(ctx context.Context) (int, error) {
	const q = `
		UPDATE jobs
		SET status = 'pending', worker_id = NULL, lease_expires_at = NULL, version = version + 1, updated_at = now()
		WHERE status = 'running' AND lease_expires_at < now()`

	tag, err := s.pool.Exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("jobstore/postgres: reclaim_expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CleanupSucceeded implements jobstore.Storage.
func (s *Store) CleanupSucceeded(ctx context.Context, olderThan time.Time) (int, error) {
	const q = `DELETE FROM jobs WHERE status = 'succeeded' AND updated_at < $1`
	tag, err := s.pool.Exec(ctx, q, olderThan)
	if err != nil {
		return 0, fmt.Errorf("jobstore/postgres: cleanup_succeeded: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Stats implements jobstore.Storage.
func (s *Store) Stats(ctx context.Context) (jobstore.Stats, error) {
	const q = `
		SELECT
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'running'),
			count(*) FILTER (WHERE status = 'succeeded'),
			count(*) FILTER (WHERE status = 'dead_letter')
		FROM jobs`

	var st jobstore.Stats
	err := s.pool.QueryRow(ctx, q).Scan(&st.Pending, &st.Running, &st.Succeeded, &st.DeadLetter)
	if err != nil {
		return jobstore.Stats{}, fmt.Errorf("jobstore/postgres: stats: %w", err)
	}
	return st, nil
}

// Get implements jobstore.Storage.
func (s *Store) Get(ctx context.Context, jobID uuid.UUID) (jobstore.Job, error) {
	const q = `
		SELECT id, job_type, payload, version, status, attempt, max_retries, priority,
		       run_at, worker_id, lease_expires_at, error_message, error_kind, created_at, updated_at
		FROM jobs WHERE id = $1`

	var j jobstore.Job
	var status string
	var errorKind *string
	err := s.pool.QueryRow(ctx, q, jobID).Scan(
		&j.ID, &j.JobType, &j.Payload, &j.Version, &status, &j.Attempt, &j.MaxRetries, &j.Priority,
		&j.RunAt, &j.WorkerID, &j.LeaseExpiresAt, &j.ErrorMessage, &errorKind, &j.CreatedAt, &j.UpdatedAt,
	)
	if pg.IsNotFoundError(err) {
		return jobstore.Job{}, jobstore.ErrJobNotFound
	}
	if err != nil {
		return jobstore.Job{}, fmt.Errorf("jobstore/postgres: get: %w", err)
	}
	j.Status = jobstore.Status(status)
	if errorKind != nil {
		k := jobstore.ErrorKind(*errorKind)
		j.ErrorKind = &k
	}
	return j, nil
}

// ListDeadLetter implements jobstore.Storage.
func (s *Store) ListDeadLetter(ctx context.Context, limit int) ([]jobstore.Job, error) {
	const q = `
		SELECT id, job_type, payload, version, status, attempt, max_retries, priority,
		       run_at, worker_id, lease_expires_at, error_message, error_kind, created_at, updated_at
		FROM jobs WHERE status = 'dead_letter'
		ORDER BY updated_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("jobstore/postgres: list_dead_letter: %w", err)
	}
	defer rows.Close()

	var out []jobstore.Job
	for rows.Next() {
		var j jobstore.Job
		var status string
		var errorKind *string
		if err := rows.Scan(
			&j.ID, &j.JobType, &j.Payload, &j.Version, &status, &j.Attempt, &j.MaxRetries, &j.Priority,
			&j.RunAt, &j.WorkerID, &j.LeaseExpiresAt, &j.ErrorMessage, &errorKind, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("jobstore/postgres: list_dead_letter: scan: %w", err)
		}
		j.Status = jobstore.Status(status)
		if errorKind != nil {
			k := jobstore.ErrorKind(*errorKind)
			j.ErrorKind = &k
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Requeue implements jobstore.Storage.
func (s *Store) Requeue(ctx context.Context, jobID uuid.UUID) error {
	const q = `
		UPDATE jobs
		SET status = 'pending', attempt = 1, run_at = now(),
		    error_message = NULL, error_kind = NULL, version = version + 1, updated_at = now()
		WHERE id = $1 AND status = 'dead_letter'`

	tag, err := s.pool.Exec(ctx, q, jobID)
	if err != nil {
		return fmt.Errorf("jobstore/postgres: requeue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, jobID); err != nil {
			return err
		}
		return fmt.Errorf("jobstore/postgres: job %s is not dead_letter", jobID)
	}
	return nil
}

var _ jobstore.Storage = (*Store)(nil)
