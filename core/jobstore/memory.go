package jobstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-process Storage implementation for tests and
// local development. It keeps every job in a map guarded by a single
// mutex; claim ordering and lease expiry are computed on demand rather
// than maintained via background goroutines; there is no durability
// across process restarts.
type MemoryStorage struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*Job
	byStatus map[Status][]uuid.UUID
}

// NewMemoryStorage returns an empty, ready-to-use MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		jobs:     make(map[uuid.UUID]*Job),
		byStatus: make(map[Status][]uuid.UUID),
	}
}

func (m *MemoryStorage) insertIndex(status Status, id uuid.UUID) {
	m.byStatus[status] = append(m.byStatus[status], id)
}

func (m *MemoryStorage) removeIndex(status Status, id uuid.UUID) {
	m.byStatus[status] = slices.DeleteFunc(m.byStatus[status], func(other uuid.UUID) bool {
		return other == id
	})
}

func (m *MemoryStorage) enqueue(spec EnqueueSpec, runAt time.Time) uuid.UUID {
	now := time.Now()
	job := &Job{
		ID:         uuid.New(),
		JobType:    spec.JobType,
		Payload:    spec.Payload,
		Version:    1,
		Status:     StatusPending,
		Attempt:    1,
		MaxRetries: spec.MaxRetries,
		Priority:   spec.Priority,
		RunAt:      runAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	m.insertIndex(StatusPending, job.ID)
	return job.ID
}

// Enqueue implements Storage.
func (m *MemoryStorage) Enqueue(ctx context.Context, spec EnqueueSpec) (uuid.UUID, error) {
	return m.enqueue(spec, time.Now()), nil
}

// Schedule implements Storage.
func (m *MemoryStorage) Schedule(ctx context.Context, spec EnqueueSpec, runAt time.Time) (uuid.UUID, error) {
	return m.enqueue(spec, runAt), nil
}

// ClaimReady implements Storage. Pending jobs due to run are sorted by
// (priority ASC, run_at ASC) and claimed up to limit, mirroring the
// single-transaction SELECT ... FOR UPDATE SKIP LOCKED semantics the
// postgres implementation provides with a real lock.
func (m *MemoryStorage) ClaimReady(ctx context.Context, workerID string, limit int, leaseDuration time.Duration) ([]ClaimedJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var candidates []*Job
	for _, id := range m.byStatus[StatusPending] {
		job := m.jobs[id]
		if job.RunAt.After(now) {
			continue
		}
		candidates = append(candidates, job)
	}

	slices.SortFunc(candidates, func(a, b *Job) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return a.RunAt.Compare(b.RunAt)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	claimed := make([]ClaimedJob, 0, len(candidates))
	lease := now.Add(leaseDuration)
	for _, job := range candidates {
		m.removeIndex(StatusPending, job.ID)
		job.Status = StatusRunning
		job.WorkerID = &workerID
		job.LeaseExpiresAt = &lease
		job.Version++
		job.UpdatedAt = now
		m.insertIndex(StatusRunning, job.ID)

		claimed = append(claimed, ClaimedJob{
			ID:       job.ID,
			JobType:  job.JobType,
			Payload:  job.Payload,
			Version:  job.Version,
			Attempt:  job.Attempt,
			WorkerID: workerID,
		})
	}

	return claimed, nil
}

// claimedLocked validates a mutation call's fencing token against the
// job's current state. Caller must hold m.mu.
func (m *MemoryStorage) claimedLocked(jobID uuid.UUID, workerID string, version int64) (*Job, error) {
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status != StatusRunning || job.WorkerID == nil || *job.WorkerID != workerID || job.Version != version {
		return nil, ErrStaleClaim
	}
	return job, nil
}

// MarkSucceeded implements Storage.
func (m *MemoryStorage) MarkSucceeded(ctx context.Context, jobID uuid.UUID, workerID string, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.claimedLocked(jobID, workerID, version)
	if err != nil {
		return err
	}

	m.removeIndex(StatusRunning, job.ID)
	job.Status = StatusSucceeded
	job.WorkerID = nil
	job.LeaseExpiresAt = nil
	job.Version++
	job.UpdatedAt = time.Now()
	m.insertIndex(StatusSucceeded, job.ID)
	return nil
}

// MarkFailed implements Storage.
func (m *MemoryStorage) MarkFailed(ctx context.Context, jobID uuid.UUID, workerID string, version int64, errMsg string, kind ErrorKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.claimedLocked(jobID, workerID, version)
	if err != nil {
		return err
	}

	now := time.Now()
	job.ErrorMessage = &errMsg
	k := kind
	job.ErrorKind = &k

	m.removeIndex(StatusRunning, job.ID)
	job.WorkerID = nil
	job.LeaseExpiresAt = nil

	if kind == ErrorKindNonRetryable || job.Attempt >= job.MaxRetries {
		job.Status = StatusDeadLetter
		m.insertIndex(StatusDeadLetter, job.ID)
	} else {
		delay := RetryDelay(job.Attempt)
		job.Attempt++
		job.Status = StatusPending
		job.RunAt = now.Add(delay)
		m.insertIndex(StatusPending, job.ID)
	}

	job.Version++
	job.UpdatedAt = now
	return nil
}

// Heartbeat implements Storage.
func (m *MemoryStorage) Heartbeat(ctx context.Context, jobID uuid.UUID, workerID string, version int64, leaseDuration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.claimedLocked(jobID, workerID, version)
	if err != nil {
		return err
	}

	lease := time.Now().Add(leaseDuration)
	job.LeaseExpiresAt = &lease
	job.Version++
	job.UpdatedAt = time.Now()
	return nil
}

// ReclaimExpired implements Storage.
func (m *MemoryStorage) ReclaimExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	count := 0
	for _, id := range slices.Clone(m.byStatus[StatusRunning]) {
		job := m.jobs[id]
		if job.LeaseExpiresAt == nil || job.LeaseExpiresAt.After(now) {
			continue
		}

		m.removeIndex(StatusRunning, job.ID)
		job.Status = StatusPending
		job.WorkerID = nil
		job.LeaseExpiresAt = nil
		job.Version++
		job.UpdatedAt = now
		m.insertIndex(StatusPending, job.ID)
		count++
	}

	return count, nil
}

// CleanupSucceeded implements Storage.
func (m *MemoryStorage) CleanupSucceeded(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, id := range slices.Clone(m.byStatus[StatusSucceeded]) {
		job := m.jobs[id]
		if job.UpdatedAt.After(olderThan) {
			continue
		}
		m.removeIndex(StatusSucceeded, job.ID)
		delete(m.jobs, job.ID)
		count++
	}

	return count, nil
}

// Stats implements Storage.
func (m *MemoryStorage) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		Pending:    int64(len(m.byStatus[StatusPending])),
		Running:    int64(len(m.byStatus[StatusRunning])),
		Succeeded:  int64(len(m.byStatus[StatusSucceeded])),
		DeadLetter: int64(len(m.byStatus[StatusDeadLetter])),
	}, nil
}

// Get implements Storage.
func (m *MemoryStorage) Get(ctx context.Context, jobID uuid.UUID) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// ListDeadLetter implements Storage.
func (m *MemoryStorage) ListDeadLetter(ctx context.Context, limit int) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := slices.Clone(m.byStatus[StatusDeadLetter])
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return m.jobs[b].UpdatedAt.Compare(m.jobs[a].UpdatedAt)
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]Job, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.jobs[id])
	}
	return out, nil
}

// Requeue implements Storage.
func (m *MemoryStorage) Requeue(ctx context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != StatusDeadLetter {
		return fmt.Errorf("jobstore: job %s is not dead_letter", jobID)
	}

	m.removeIndex(StatusDeadLetter, job.ID)
	job.Status = StatusPending
	job.Attempt = 1
	job.RunAt = time.Now()
	job.ErrorMessage = nil
	job.ErrorKind = nil
	job.Version++
	job.UpdatedAt = time.Now()
	m.insertIndex(StatusPending, job.ID)
	return nil
}
