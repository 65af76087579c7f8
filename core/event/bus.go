package event

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultSubscriberBufferSize is the default per-subscriber buffer depth.
// A larger buffer absorbs more of a burst before the subscriber starts
// losing events, at the cost of more retained memory per subscriber.
const DefaultSubscriberBufferSize = 64

// Bus is the publish/subscribe fan-out contract described by spec §4.1.
// Emit never blocks on a slow subscriber; Subscribe returns a handle that
// observes only events emitted after it was created.
type Bus interface {
	// Emit delivers env to every live subscriber with buffer capacity.
	// Never blocks and never fails.
	Emit(env EventEnvelope)

	// Subscribe returns a receiver of every envelope emitted after this
	// call returns, in emission order as observed by that subscriber.
	Subscribe() *Subscriber

	// Close prunes all subscribers and releases bus resources. Emit on a
	// closed bus is a silent no-op.
	Close() error
}

// ChannelBus is the in-process, at-most-once implementation of Bus.
// Emit fans out, under a read lock, to independently-buffered per-subscriber
// channels; a subscriber that cannot keep up loses events rather than
// stalling the publisher or any other subscriber.
type ChannelBus struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	bufferSize  int
	logger      *slog.Logger
	closed      atomic.Bool
}

// ChannelBusOption configures a ChannelBus.
type ChannelBusOption func(*ChannelBus)

// WithSubscriberBufferSize overrides the per-subscriber channel depth.
func WithSubscriberBufferSize(n int) ChannelBusOption {
	return func(b *ChannelBus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithBusLogger configures structured logging for bus operations. Pass
// slog.New(slog.NewTextHandler(io.Discard, nil)) to silence logging.
func WithBusLogger(logger *slog.Logger) ChannelBusOption {
	return func(b *ChannelBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewChannelBus creates an in-memory event bus.
func NewChannelBus(opts ...ChannelBusOption) *ChannelBus {
	b := &ChannelBus{
		subscribers: make(map[*Subscriber]struct{}),
		bufferSize:  DefaultSubscriberBufferSize,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Emit fans env out to every live subscriber. A subscriber whose buffer
// is full loses this event and accumulates a lag counter instead of
// blocking the publisher or any other subscriber.
func (b *ChannelBus) Emit(env EventEnvelope) {
	if b.closed.Load() {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		sub.push(env)
	}
}

// Subscribe registers a new receiver. The returned Subscriber observes
// only envelopes emitted after Subscribe returns.
func (b *ChannelBus) Subscribe() *Subscriber {
	sub := &Subscriber{
		ch:   make(chan EventEnvelope, b.bufferSize),
		done: make(chan struct{}),
		bus:  b,
	}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// SubscribeTyped filters a new subscription down to envelopes whose
// payload is of type T. Lagged signals are consumed by
// TypedSubscriber.Receive and not returned to the caller.
func SubscribeTyped[T any](b Bus) *TypedSubscriber[T] {
	return &TypedSubscriber[T]{sub: b.Subscribe()}
}

// prune removes sub from the subscriber set. Called when a subscriber
// closes itself; a disappeared receiver is otherwise silently dropped on
// the next fan-out rather than erroring the publisher.
func (b *ChannelBus) prune(sub *Subscriber) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()
}

// Close prunes every subscriber and marks the bus closed. Subsequent
// Emit calls are no-ops.
func (b *ChannelBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.subscribers = make(map[*Subscriber]struct{})
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}

	b.logger.Info("event bus closed")
	return nil
}

// SubscriberCount reports the number of live subscribers, for
// observability and tests.
func (b *ChannelBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Subscriber is a single receiver's view of the bus. Events delivered to
// a Subscriber are observed in emission order; there is no ordering
// guarantee across distinct subscribers.
type Subscriber struct {
	ch      chan EventEnvelope
	done    chan struct{}
	bus     *ChannelBus
	dropped atomic.Int64
	closed  atomic.Bool
}

// push attempts a non-blocking delivery. A full buffer increments the
// lag counter instead of blocking the emitter.
func (s *Subscriber) push(env EventEnvelope) {
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- env:
	default:
		s.dropped.Add(1)
	}
}

// Receive blocks until the next envelope (or a Lagged signal) is
// available, ctx is cancelled, or the subscriber is closed. Envelopes
// already buffered are returned before a pending Lagged signal.
func (s *Subscriber) Receive(ctx context.Context) (any, error) {
	select {
	case env, ok := <-s.ch:
		if !ok {
			return nil, ErrSubscriberClosed
		}
		return env, nil
	default:
	}

	if n := s.dropped.Swap(0); n > 0 {
		return Lagged{N: int(n)}, nil
	}

	select {
	case env, ok := <-s.ch:
		if !ok {
			return nil, ErrSubscriberClosed
		}
		return env, nil
	case <-s.done:
		return nil, ErrSubscriberClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops further delivery to this subscriber and prunes it from
// its bus. Idempotent.
func (s *Subscriber) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)
	if s.bus != nil {
		s.bus.prune(s)
	}
	return nil
}

// TypedSubscriber filters a Subscriber's stream down to one payload type.
type TypedSubscriber[T any] struct {
	sub *Subscriber
}

// Receive blocks until the next matching envelope, ctx cancellation, or
// subscriber closure. Lagged signals are swallowed here since a typed
// subscriber has no slot for them in its return type; use Subscribe
// directly when lag visibility matters.
func (t *TypedSubscriber[T]) Receive(ctx context.Context) (T, EventEnvelope, error) {
	var zero T
	for {
		msg, err := t.sub.Receive(ctx)
		if err != nil {
			return zero, EventEnvelope{}, err
		}
		switch v := msg.(type) {
		case Lagged:
			continue
		case EventEnvelope:
			if typed, ok := v.Payload.(T); ok {
				return typed, v, nil
			}
			continue
		}
	}
}

// Close releases the underlying subscription.
func (t *TypedSubscriber[T]) Close() error {
	return t.sub.Close()
}
