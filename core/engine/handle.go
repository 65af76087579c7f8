// Package engine owns the runtime a Builder assembles: the bus delivery
// loop that drives every registered Machine's Decide, the dispatcher
// those commands route through, an optional worker pool draining the
// job store, and optional periodic command sources. See spec §4.7.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/seesaw/core/command"
	"github.com/dmitrymomot/seesaw/core/dispatcher"
	"github.com/dmitrymomot/seesaw/core/event"
	"github.com/dmitrymomot/seesaw/core/jobstore"
	"github.com/dmitrymomot/seesaw/core/machine"
	"github.com/dmitrymomot/seesaw/core/worker"
)

// Stats aggregates observability counters across every subordinate
// component, per spec §12.1.
type Stats struct {
	InflightTotal int
	Workers       []worker.Stats
	Jobs          jobstore.Stats
}

// Handle is a running (or ready-to-run) engine. Build it with Builder.
type Handle struct {
	bus        *trackedBus
	dispatcher *dispatcher.Dispatcher
	machines   []machine.Machine
	workers    []*worker.Worker
	store      jobstore.Storage
	tracker    *InflightTracker
	periodic   []PeriodicSource
	logger     *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// Start runs the bus delivery loop, every worker, and every periodic
// source in one errgroup.Group, blocking until ctx is cancelled or a
// component errors. Use Shutdown for a bounded graceful stop instead of
// simply cancelling ctx, so in-flight effects get their grace period
// (spec §4.7's cancellation model).
func (h *Handle) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.stopped = make(chan struct{})
	h.mu.Unlock()
	defer close(h.stopped)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return h.deliveryLoop(egCtx)
	})

	for _, w := range h.workers {
		eg.Go(w.Run(egCtx))
	}

	for _, p := range h.periodic {
		p := p
		eg.Go(func() error {
			return h.runPeriodic(egCtx, p)
		})
	}

	h.logger.InfoContext(ctx, "engine started",
		slog.Int("machines", len(h.machines)),
		slog.Int("workers", len(h.workers)),
		slog.Int("periodic_sources", len(h.periodic)))

	err := eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown cancels the running engine and waits for Start to return, up
// to grace for in-flight work to wind down. A worker's own
// ShutdownTimeout option governs how long it waits for its current job;
// grace here bounds the overall wait across every component.
func (h *Handle) Shutdown(ctx context.Context, grace time.Duration) error {
	h.mu.Lock()
	if h.cancel == nil {
		h.mu.Unlock()
		return ErrNotStarted
	}
	cancel := h.cancel
	h.cancel = nil
	stopped := h.stopped
	h.mu.Unlock()

	cancel()

	select {
	case <-stopped:
		return nil
	case <-time.After(grace):
		return fmt.Errorf("engine: shutdown grace period exceeded after %s", grace)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EmitAndAwait publishes payload as a new, independently-correlated
// envelope and blocks until every machine has had a chance to Decide on
// it (and, transitively, on every envelope produced as a result) — i.e.
// until the correlation id's inflight count returns to zero.
func (h *Handle) EmitAndAwait(ctx context.Context, payload any) (uuid.UUID, error) {
	correlationID := uuid.New()
	h.bus.Emit(event.NewEnvelope(correlationID, event.RoleInitial, 0, payload))
	return correlationID, h.tracker.Wait(ctx, correlationID)
}

// Bus exposes the underlying event bus for direct Subscribe calls —
// observers that want to watch outcomes rather than block on
// EmitAndAwait.
func (h *Handle) Bus() event.Bus { return h.bus }

func (h *Handle) deliveryLoop(ctx context.Context) error {
	sub := h.bus.Subscribe()
	defer sub.Close()

	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, event.ErrSubscriberClosed) {
				return nil
			}
			return err
		}

		switch v := msg.(type) {
		case event.Lagged:
			h.logger.WarnContext(ctx, "engine delivery loop lagged", slog.Int("dropped", v.N))
		case event.EventEnvelope:
			h.handleEnvelope(ctx, v)
		}
	}
}

func (h *Handle) handleEnvelope(ctx context.Context, env event.EventEnvelope) {
	defer h.tracker.Decrement(env.CorrelationID)

	seq := env.Sequence
	for _, m := range h.machines {
		cmd, ok := h.decide(ctx, env, m)
		if !ok {
			continue
		}
		seq++
		if err := h.dispatcher.Dispatch(ctx, env.CorrelationID, seq, cmd); err != nil {
			h.logger.ErrorContext(ctx, "dispatch failed",
				slog.String("correlation_id", env.CorrelationID.String()),
				slog.String("error", err.Error()))
		}
	}
}

// decide invokes a Machine's Decide, converting a panic into a dropped
// decision so one bad machine cannot take down the whole delivery loop —
// the same boundary guard runEffect applies around an Effect's Execute.
func (h *Handle) decide(ctx context.Context, env event.EventEnvelope, m machine.Machine) (cmd command.Command, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.ErrorContext(ctx, "machine decide panicked",
				slog.String("correlation_id", env.CorrelationID.String()),
				slog.Any("recovered", r))
			ok = false
		}
	}()
	return m.Decide(env)
}

func (h *Handle) runPeriodic(ctx context.Context, source PeriodicSource) error {
	ticker := time.NewTicker(source.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			correlationID := uuid.New()
			cmd := source.Factory()
			if err := h.dispatcher.Dispatch(ctx, correlationID, 0, cmd); err != nil {
				h.logger.ErrorContext(ctx, "periodic dispatch failed",
					slog.String("source", source.Name),
					slog.String("error", err.Error()))
			}
		}
	}
}

// Stats aggregates every worker's Stats plus the job store's Stats (if
// one is configured) and the total outstanding inflight envelope count.
func (h *Handle) Stats(ctx context.Context) (Stats, error) {
	s := Stats{InflightTotal: h.tracker.Total()}
	for _, w := range h.workers {
		s.Workers = append(s.Workers, w.Stats())
	}
	if h.store != nil {
		jobStats, err := h.store.Stats(ctx)
		if err != nil {
			return s, fmt.Errorf("engine: job store stats: %w", err)
		}
		s.Jobs = jobStats
	}
	return s, nil
}

// Healthcheck joins every worker's Healthcheck error into one error via
// errors.Join (spec §12.1), nil if every worker (or there are none) is
// healthy.
func (h *Handle) Healthcheck(ctx context.Context) error {
	var errs []error
	for _, w := range h.workers {
		if err := w.Healthcheck(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
