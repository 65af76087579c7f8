// Package worker claims jobs from a jobstore.Storage, rehydrates their
// command payload through a command.Registry, executes the matching
// effect.Effect, and writes the outcome back to the store — heartbeating
// the lease for the duration of execution and re-emitting the effect's
// result event on the bus.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/dmitrymomot/seesaw/core/command"
	"github.com/dmitrymomot/seesaw/core/effect"
	"github.com/dmitrymomot/seesaw/core/event"
	"github.com/dmitrymomot/seesaw/core/jobstore"
)

// Stats reports worker-level observability counters.
type Stats struct {
	JobsSucceeded int64
	JobsFailed    int64
	ActiveJobs    int32
	IsRunning     bool
}

// Worker polls a jobstore.Storage and executes claimed jobs against the
// effect registered for their job_type.
type Worker struct {
	store     jobstore.Storage
	commands  *command.Registry
	effects   *effect.Registry
	bus       event.Bus
	id        string
	opts      options
	sem       chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	cancel    context.CancelFunc
	running   atomic.Bool
	succeeded atomic.Int64
	failed    atomic.Int64
	active    atomic.Int32
}

// New builds a Worker. commands and effects may be nil only if this
// worker's store never hands back jobs of a type those registries would
// be needed for — in the normal case both must be fully populated before
// Start.
func New(store jobstore.Storage, commands *command.Registry, effects *effect.Registry, bus event.Bus, opts ...Option) (*Worker, error) {
	if store == nil {
		return nil, ErrStorageNil
	}

	o := options{
		pullInterval:      time.Second,
		leaseDuration:     60 * time.Second,
		shutdownTimeout:   30 * time.Second,
		maxConcurrentJobs: 1,
		batchSize:         1,
		maxPollBackoff:    30 * time.Second,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Worker{
		store:    store,
		commands: commands,
		effects:  effects,
		bus:      bus,
		id:       uuid.New().String(),
		opts:     o,
		sem:      make(chan struct{}, o.maxConcurrentJobs),
	}, nil
}

// ID returns this worker's identity, the value claimed jobs record as
// worker_id.
func (w *Worker) ID() string { return w.id }

// Start polls the store until ctx is cancelled. Blocking; use Run for
// errgroup-style composition.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	w.running.Store(true)
	defer w.running.Store(false)

	w.opts.logger.InfoContext(ctx, "worker started",
		slog.String("worker_id", w.id),
		slog.Int("max_concurrent", cap(w.sem)))

	pollBackoff := backoff.NewExponentialBackOff()
	pollBackoff.MaxElapsedTime = 0
	pollBackoff.MaxInterval = w.opts.maxPollBackoff

	ticker := time.NewTicker(w.opts.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				w.mu.Lock()
				started := w.cancel != nil
				if started {
					w.wg.Add(1)
				}
				w.mu.Unlock()

				if !started {
					<-w.sem
					return nil
				}

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					claimed, err := w.claim(ctx)
					if err != nil {
						w.opts.logger.ErrorContext(ctx, "claim failed", slog.String("error", err.Error()))
						time.Sleep(pollBackoff.NextBackOff())
						return
					}
					pollBackoff.Reset()
					if claimed {
						ticker.Reset(w.opts.pullInterval)
					}
				}()
			default:
				w.opts.logger.DebugContext(ctx, "all worker slots busy, skipping tick")
			}
		}
	}
}

// Stop gracefully shuts down the worker, waiting up to ShutdownTimeout
// for in-flight jobs.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrNotStarted
	}
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(w.opts.shutdownTimeout):
		return fmt.Errorf("worker: shutdown timeout exceeded after %s", w.opts.shutdownTimeout)
	}
}

// Run adapts Worker to errgroup.Group's Go signature.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- w.Start(ctx) }()

		select {
		case <-ctx.Done():
			_ = w.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// claim pulls up to batchSize jobs (if any) and executes them in turn
// within this poll's single concurrency slot. Returns claimed=true only
// if at least one job was actually picked up; the caller then resets its
// poll ticker, so the next poll comes one full pull interval after this
// batch finished. No immediate re-poll is made.
func (w *Worker) claim(ctx context.Context) (claimed bool, err error) {
	jobs, err := w.store.ClaimReady(ctx, w.id, w.opts.batchSize, w.opts.leaseDuration)
	if err != nil {
		return false, err
	}
	if len(jobs) == 0 {
		return false, nil
	}

	for _, job := range jobs {
		w.execute(ctx, job)
	}
	return true, nil
}

// execute runs a single claimed job's effect to completion, heartbeating
// the lease throughout, and writes the terminal result back to the
// store.
func (w *Worker) execute(ctx context.Context, job jobstore.ClaimedJob) {
	w.active.Add(1)
	defer w.active.Add(-1)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	hbVersion := make(chan int64, 1)
	go func() { hbVersion <- w.heartbeatLoop(hbCtx, job) }()

	outcome, err := w.runEffect(ctx, job)
	stopHeartbeat()
	job.Version = <-hbVersion

	if err != nil {
		w.failed.Add(1)
		kind := jobstore.ErrorKindRetryable
		if !effect.IsRetryable(err) {
			kind = jobstore.ErrorKindNonRetryable
		}
		w.opts.logger.ErrorContext(ctx, "job failed",
			slog.String("worker_id", w.id),
			slog.String("job_id", job.ID.String()),
			slog.String("job_type", job.JobType),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))

		if mErr := w.store.MarkFailed(ctx, job.ID, w.id, job.Version, err.Error(), kind); mErr != nil {
			w.opts.logger.ErrorContext(ctx, "failed to record job failure", slog.String("error", mErr.Error()))
		}
		return
	}

	if mErr := w.store.MarkSucceeded(ctx, job.ID, w.id, job.Version); mErr != nil {
		w.opts.logger.ErrorContext(ctx, "failed to record job success", slog.String("error", mErr.Error()))
		return
	}
	w.succeeded.Add(1)

	if outcome != nil && w.bus != nil {
		w.bus.Emit(event.NewEnvelope(job.ID, event.RoleTerminal, job.Attempt, outcome))
	}
}

// runEffect deserializes the job's payload, looks up its effect, and
// invokes it, converting a panic into a retryable failure so one bad
// effect cannot take down the whole worker.
func (w *Worker) runEffect(ctx context.Context, job jobstore.ClaimedJob) (outcome any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: panic in effect: %v", r)
		}
	}()

	payload, derr := w.commands.Deserialize(job.JobType, job.Payload)
	if derr != nil {
		return nil, effect.NonRetryable(derr)
	}

	e, ok := w.effects.Lookup(job.JobType)
	if !ok {
		return nil, effect.NonRetryable(fmt.Errorf("worker: no effect registered for job_type %q", job.JobType))
	}

	cmd := command.Command{Mode: command.Background, Payload: payload}
	return e.Execute(ctx, cmd)
}

// heartbeatLoop extends the job's lease until ctx is cancelled (either
// by execute finishing or the worker shutting down). A lease that fails
// to extend (ErrStaleClaim) means the job has already been reclaimed by
// another worker; the loop stops but the effect keeps running to
// completion per the heartbeat/lease Open Question decision — see
// DESIGN.md. It returns the job's version after its last successful
// heartbeat, which execute then uses to record the result.
func (w *Worker) heartbeatLoop(ctx context.Context, job jobstore.ClaimedJob) int64 {
	version := job.Version
	interval := w.opts.heartbeatInterval()
	if interval <= 0 {
		return version
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return version
		case <-ticker.C:
			if err := w.store.Heartbeat(ctx, job.ID, w.id, version, w.opts.leaseDuration); err != nil {
				if errors.Is(err, jobstore.ErrStaleClaim) {
					w.opts.logger.WarnContext(ctx, "lease lost to another worker",
						slog.String("worker_id", w.id), slog.String("job_id", job.ID.String()))
					return version
				}
				w.opts.logger.ErrorContext(ctx, "heartbeat failed", slog.String("error", err.Error()))
				continue
			}
			version++
		}
	}
}

// Stats returns current worker statistics.
func (w *Worker) Stats() Stats {
	return Stats{
		JobsSucceeded: w.succeeded.Load(),
		JobsFailed:    w.failed.Load(),
		ActiveJobs:    w.active.Load(),
		IsRunning:     w.running.Load(),
	}
}

// Healthcheck reports an error if the worker is not currently running.
func (w *Worker) Healthcheck(ctx context.Context) error {
	if !w.running.Load() {
		return errors.New("worker: not running")
	}
	return nil
}
