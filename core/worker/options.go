package worker

import (
	"log/slog"
	"time"
)

type options struct {
	pullInterval      time.Duration
	leaseDuration     time.Duration
	shutdownTimeout   time.Duration
	maxConcurrentJobs int
	batchSize         int
	maxPollBackoff    time.Duration
	logger            *slog.Logger
}

// Option configures a Worker.
type Option func(*options)

// WithPullInterval sets how often the worker polls the store for ready
// jobs when it is not already at max concurrency.
func WithPullInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLeaseDuration sets how long a claimed job's lease lasts before
// ReclaimExpired considers it abandoned. The worker's heartbeat interval
// is derived from this (see heartbeatInterval).
func WithLeaseDuration(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.leaseDuration = d
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for in-flight jobs to
// finish before giving up.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithMaxConcurrentJobs bounds how many jobs this worker executes at
// once.
func WithMaxConcurrentJobs(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentJobs = n
		}
	}
}

// WithBatchSize sets how many jobs a single claim_ready poll pulls at
// once (spec §4.6 step 1: "claim_ready(self.worker_id, batch)"). Jobs
// claimed together are executed one at a time within the polling
// goroutine's single concurrency slot; raise WithMaxConcurrentJobs
// alongside this to also run claimed jobs in parallel.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithMaxPollBackoff bounds the exponential backoff applied between
// ClaimReady polls when the store itself is erroring (not when it is
// simply empty).
func WithMaxPollBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxPollBackoff = d
		}
	}
}

// WithLogger sets the structured logger. The default is a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// heartbeatInterval returns an interval comfortably under half the lease
// duration, so at least one heartbeat lands before the lease could
// expire even under scheduling jitter.
func (o options) heartbeatInterval() time.Duration {
	return o.leaseDuration / 3
}
