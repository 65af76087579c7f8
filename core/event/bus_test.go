package event_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/seesaw/core/event"
)

type orderPlaced struct {
	ID string
}

func TestChannelBus_FIFOPerSubscriber(t *testing.T) {
	bus := event.NewChannelBus()
	defer bus.Close()

	sub := bus.Subscribe()
	defer sub.Close()

	corr := uuid.New()
	for i := range 5 {
		bus.Emit(event.NewEnvelope(corr, event.RoleIntermediate, i, orderPlaced{ID: "o1"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := range 5 {
		msg, err := sub.Receive(ctx)
		require.NoError(t, err)
		env, ok := msg.(event.EventEnvelope)
		require.True(t, ok)
		assert.Equal(t, i, env.Sequence)
	}
}

func TestChannelBus_NewSubscriberMissesPastEvents(t *testing.T) {
	bus := event.NewChannelBus()
	defer bus.Close()

	bus.Emit(event.NewEnvelope(uuid.New(), event.RoleInitial, 0, orderPlaced{ID: "before"}))

	sub := bus.Subscribe()
	defer sub.Close()

	bus.Emit(event.NewEnvelope(uuid.New(), event.RoleInitial, 0, orderPlaced{ID: "after"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, err := sub.Receive(ctx)
	require.NoError(t, err)
	env := msg.(event.EventEnvelope)
	assert.Equal(t, orderPlaced{ID: "after"}, env.Payload)
}

func TestChannelBus_LaggedSignalOnFullBuffer(t *testing.T) {
	bus := event.NewChannelBus(event.WithSubscriberBufferSize(2))
	defer bus.Close()

	sub := bus.Subscribe()
	defer sub.Close()

	corr := uuid.New()
	for i := range 5 {
		bus.Emit(event.NewEnvelope(corr, event.RoleIntermediate, i, orderPlaced{ID: "o1"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := sub.Receive(ctx)
	require.NoError(t, err)
	env, ok := first.(event.EventEnvelope)
	require.True(t, ok)
	assert.Equal(t, 0, env.Sequence)

	second, err := sub.Receive(ctx)
	require.NoError(t, err)
	env, ok = second.(event.EventEnvelope)
	require.True(t, ok)
	assert.Equal(t, 1, env.Sequence)

	third, err := sub.Receive(ctx)
	require.NoError(t, err)
	lagged, ok := third.(event.Lagged)
	require.True(t, ok, "expected a Lagged signal once the buffer overflowed")
	assert.Equal(t, 3, lagged.N)
}

func TestChannelBus_EmitNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := event.NewChannelBus(event.WithSubscriberBufferSize(1))
	defer bus.Close()

	slow := bus.Subscribe()
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		for range 100 {
			bus.Emit(event.NewEnvelope(uuid.New(), event.RoleIntermediate, 0, orderPlaced{ID: "x"}))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a slow subscriber")
	}
}

func TestChannelBus_DisappearedSubscriberIsPruned(t *testing.T) {
	bus := event.NewChannelBus()
	defer bus.Close()

	sub := bus.Subscribe()
	require.Equal(t, 1, bus.SubscriberCount())

	require.NoError(t, sub.Close())
	assert.Eventually(t, func() bool {
		return bus.SubscriberCount() == 0
	}, time.Second, time.Millisecond)

	bus.Emit(event.NewEnvelope(uuid.New(), event.RoleInitial, 0, orderPlaced{ID: "x"}))
}

func TestSubscribeTyped_FiltersByPayloadType(t *testing.T) {
	bus := event.NewChannelBus()
	defer bus.Close()

	typed := event.SubscribeTyped[orderPlaced](bus)
	defer typed.Close()

	type otherEvent struct{ X int }

	bus.Emit(event.NewEnvelope(uuid.New(), event.RoleInitial, 0, otherEvent{X: 1}))
	bus.Emit(event.NewEnvelope(uuid.New(), event.RoleInitial, 0, orderPlaced{ID: "match"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	payload, _, err := typed.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "match", payload.ID)
}
