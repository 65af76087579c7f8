package jobstore

import "errors"

var (
	// ErrJobNotFound is returned when an operation references a job id
	// the store has no record of.
	ErrJobNotFound = errors.New("jobstore: job not found")

	// ErrStaleClaim is returned by mark_succeeded/mark_failed/heartbeat
	// when the caller's worker_id or version no longer matches the job's
	// current row — another worker has since reclaimed it and the
	// caller's result must be discarded (the fencing check referenced in
	// the Open Question decision on heartbeat/lease loss).
	ErrStaleClaim = errors.New("jobstore: claim is stale, job was reclaimed")

	// ErrStorageNil is returned by constructors that require a non-nil
	// Storage dependency.
	ErrStorageNil = errors.New("jobstore: storage must not be nil")
)
