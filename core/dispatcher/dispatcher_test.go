package dispatcher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/seesaw/core/command"
	"github.com/dmitrymomot/seesaw/core/dispatcher"
	"github.com/dmitrymomot/seesaw/core/effect"
	"github.com/dmitrymomot/seesaw/core/event"
	"github.com/dmitrymomot/seesaw/core/jobstore"
)

type orderPlaced struct {
	OrderID string
}

type orderConfirmed struct {
	OrderID string
}

func TestDispatcher_InlineSuccess(t *testing.T) {
	effects := effect.NewRegistry()
	require.NoError(t, effects.Register("orderPlaced", effect.Typed[orderPlaced](func(ctx context.Context, p orderPlaced) (any, error) {
		return orderConfirmed{OrderID: p.OrderID}, nil
	})))

	bus := event.NewChannelBus()
	defer bus.Close()
	sub := bus.Subscribe()
	defer sub.Close()

	d, err := dispatcher.New(effects, nil, nil, bus)
	require.NoError(t, err)

	corr := uuid.New()
	err = d.Dispatch(context.Background(), corr, 0, command.NewInline(orderPlaced{OrderID: "o1"}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := sub.Receive(ctx)
	require.NoError(t, err)
	env := msg.(event.EventEnvelope)
	assert.Equal(t, orderConfirmed{OrderID: "o1"}, env.Payload)
}

func TestDispatcher_InlineEffectErrorEmitsCommandFailed(t *testing.T) {
	effects := effect.NewRegistry()
	require.NoError(t, effects.Register("orderPlaced", effect.Typed[orderPlaced](func(ctx context.Context, p orderPlaced) (any, error) {
		return nil, errors.New("payment declined")
	})))

	bus := event.NewChannelBus()
	defer bus.Close()
	sub := bus.Subscribe()
	defer sub.Close()

	d, err := dispatcher.New(effects, nil, nil, bus)
	require.NoError(t, err)

	corr := uuid.New()
	err = d.Dispatch(context.Background(), corr, 0, command.NewInline(orderPlaced{OrderID: "o1"}))
	require.NoError(t, err, "inline effect errors are reported via CommandFailed, not the Dispatch return value")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := sub.Receive(ctx)
	require.NoError(t, err)
	env := msg.(event.EventEnvelope)
	failed, ok := env.Payload.(dispatcher.CommandFailed)
	require.True(t, ok)
	assert.Equal(t, corr, failed.CorrelationID)
	assert.EqualError(t, failed.Cause, "payment declined")
}

func TestDispatcher_InlineMissingEffectIsDispatchError(t *testing.T) {
	effects := effect.NewRegistry()
	d, err := dispatcher.New(effects, nil, nil, nil)
	require.NoError(t, err)

	err = d.Dispatch(context.Background(), uuid.New(), 0, command.NewInline(orderPlaced{OrderID: "o1"}))
	var dispatchErr *dispatcher.DispatchError
	require.ErrorAs(t, err, &dispatchErr)
}

func TestDispatcher_InlineWithSpecIsRejected(t *testing.T) {
	effects := effect.NewRegistry()
	d, err := dispatcher.New(effects, nil, nil, nil)
	require.NoError(t, err)

	cmd := command.Command{Mode: command.Inline, Spec: &command.JobSpec{JobType: "x"}, Payload: orderPlaced{}}
	err = d.Dispatch(context.Background(), uuid.New(), 0, cmd)
	var dispatchErr *dispatcher.DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.ErrorIs(t, dispatchErr, command.ErrSpecOnInline)
}

func TestDispatcher_BackgroundEnqueues(t *testing.T) {
	effects := effect.NewRegistry()
	commands := command.NewRegistry()
	require.NoError(t, commands.Register("order:confirm", func(payload []byte) (any, error) {
		return orderPlaced{}, nil
	}))

	store := jobstore.NewMemoryStorage()
	bus := event.NewChannelBus()
	defer bus.Close()
	sub := bus.Subscribe()
	defer sub.Close()

	d, err := dispatcher.New(effects, commands, store, bus)
	require.NoError(t, err)

	cmd := command.NewBackground(orderPlaced{OrderID: "o1"}, command.JobSpec{JobType: "order:confirm", MaxRetries: 3})
	err = d.Dispatch(context.Background(), uuid.New(), 0, cmd)
	require.NoError(t, err)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := sub.Receive(ctx)
	require.NoError(t, err)
	env := msg.(event.EventEnvelope)
	enqueued, ok := env.Payload.(dispatcher.JobEnqueued)
	require.True(t, ok)
	assert.Equal(t, "order:confirm", enqueued.JobType)
}

func TestDispatcher_BackgroundMissingSpecIsDispatchError(t *testing.T) {
	effects := effect.NewRegistry()
	store := jobstore.NewMemoryStorage()
	d, err := dispatcher.New(effects, nil, store, nil)
	require.NoError(t, err)

	cmd := command.Command{Mode: command.Background, Payload: orderPlaced{}}
	err = d.Dispatch(context.Background(), uuid.New(), 0, cmd)
	var dispatchErr *dispatcher.DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.ErrorIs(t, dispatchErr, command.ErrMissingSpec)
}

func TestDispatcher_BackgroundNoStoreConfigured(t *testing.T) {
	effects := effect.NewRegistry()
	d, err := dispatcher.New(effects, nil, nil, nil)
	require.NoError(t, err)

	cmd := command.NewBackground(orderPlaced{}, command.JobSpec{JobType: "order:confirm"})
	err = d.Dispatch(context.Background(), uuid.New(), 0, cmd)
	var dispatchErr *dispatcher.DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.ErrorIs(t, dispatchErr, dispatcher.ErrStoreNil)
}

func TestDispatcher_ScheduledEnqueuesWithRunAt(t *testing.T) {
	effects := effect.NewRegistry()
	commands := command.NewRegistry()
	require.NoError(t, commands.Register("order:confirm", func(payload []byte) (any, error) {
		return orderPlaced{}, nil
	}))
	store := jobstore.NewMemoryStorage()

	d, err := dispatcher.New(effects, commands, store, nil)
	require.NoError(t, err)

	runAt := time.Now().Add(time.Hour)
	cmd := command.NewScheduled(orderPlaced{OrderID: "o1"}, command.JobSpec{JobType: "order:confirm"}, runAt)
	err = d.Dispatch(context.Background(), uuid.New(), 0, cmd)
	require.NoError(t, err)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
}
