package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/seesaw/core/event"
)

// InflightTracker counts outstanding envelopes per correlation id, per
// spec §4.7/§12.3. Count goes up by one for every envelope emitted under
// a correlation id and down by one once the delivery loop has finished
// running every machine's Decide against it; EmitAndAwait blocks until a
// correlation id's count reaches zero.
type InflightTracker struct {
	mu      sync.Mutex
	counts  map[uuid.UUID]int
	waiters map[uuid.UUID][]chan struct{}
}

// NewInflightTracker returns an empty, ready-to-use tracker.
func NewInflightTracker() *InflightTracker {
	return &InflightTracker{
		counts:  make(map[uuid.UUID]int),
		waiters: make(map[uuid.UUID][]chan struct{}),
	}
}

// Increment records one more outstanding envelope for id.
func (t *InflightTracker) Increment(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[id]++
}

// Decrement records that one envelope under id has been fully processed.
// Once the count reaches zero, every goroutine blocked in Wait(id) is
// released and the entry is dropped.
func (t *InflightTracker) Decrement(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts[id]--
	if t.counts[id] > 0 {
		return
	}

	delete(t.counts, id)
	for _, ch := range t.waiters[id] {
		close(ch)
	}
	delete(t.waiters, id)
}

// Count reports the current outstanding envelope count for id.
func (t *InflightTracker) Count(id uuid.UUID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[id]
}

// Total reports the total outstanding envelope count across every
// correlation id, for Stats.
func (t *InflightTracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}

// Wait blocks until id's count reaches zero, ctx is cancelled, or the
// count was already zero (or never incremented) when Wait was called.
func (t *InflightTracker) Wait(ctx context.Context, id uuid.UUID) error {
	t.mu.Lock()
	if t.counts[id] <= 0 {
		t.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	t.waiters[id] = append(t.waiters[id], ch)
	t.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trackedBus wraps a Bus so every Emit increments the inflight count for
// the envelope's correlation id. The delivery loop decrements once it
// has finished running every machine's Decide for that envelope.
type trackedBus struct {
	event.Bus
	tracker *InflightTracker
}

func newTrackedBus(bus event.Bus, tracker *InflightTracker) *trackedBus {
	return &trackedBus{Bus: bus, tracker: tracker}
}

func (b *trackedBus) Emit(env event.EventEnvelope) {
	b.tracker.Increment(env.CorrelationID)
	b.Bus.Emit(env)
}
