package jobstore

import "time"

// maxBackoff is the ceiling the exponential retry delay never exceeds,
// regardless of attempt count.
const maxBackoff = time.Hour

// RetryDelay computes the exponential backoff for the given attempt
// number (1-indexed, the attempt that just failed): min(2^attempt, 3600)
// seconds. attempt <= 0 is treated as attempt 1.
//
// This is a pure function, not cenkalti/backoff: the job's next run_at
// must be deterministic and reproducible from (attempt, now) alone, which
// a stateful backoff.BackOff generator does not guarantee across process
// restarts.
func RetryDelay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	if attempt > 62 { // 2^63 overflows int64 nanoseconds long before this
		return maxBackoff
	}

	delay := time.Duration(1<<uint(attempt)) * time.Second
	if delay > maxBackoff || delay <= 0 {
		return maxBackoff
	}
	return delay
}
