package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/seesaw/core/command"
	"github.com/dmitrymomot/seesaw/core/effect"
	"github.com/dmitrymomot/seesaw/core/event"
	"github.com/dmitrymomot/seesaw/core/jobstore"
	"github.com/dmitrymomot/seesaw/core/worker"
)

type sendWelcomeEmail struct {
	UserID string `json:"user_id"`
}

func newTestRegistries(t *testing.T, execute func(ctx context.Context, payload sendWelcomeEmail) (any, error)) (*command.Registry, *effect.Registry) {
	t.Helper()

	commands := command.NewRegistry()
	require.NoError(t, commands.Register("worker_test.sendWelcomeEmail", func(payload []byte) (any, error) {
		var p sendWelcomeEmail
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	}))

	effects := effect.NewRegistry()
	require.NoError(t, effects.Register("worker_test.sendWelcomeEmail", effect.Typed[sendWelcomeEmail](execute)))

	return commands, effects
}

func mustEnqueue(t *testing.T, store jobstore.Storage, maxRetries int) {
	t.Helper()
	payload, err := json.Marshal(sendWelcomeEmail{UserID: "u1"})
	require.NoError(t, err)

	_, err = store.Enqueue(context.Background(), jobstore.EnqueueSpec{
		JobType:    "worker_test.sendWelcomeEmail",
		Payload:    payload,
		MaxRetries: maxRetries,
	})
	require.NoError(t, err)
}

func TestWorker_ClaimExecuteSucceed(t *testing.T) {
	store := jobstore.NewMemoryStorage()
	mustEnqueue(t, store, 3)

	done := make(chan struct{})
	commands, effects := newTestRegistries(t, func(ctx context.Context, p sendWelcomeEmail) (any, error) {
		close(done)
		return p, nil
	})

	bus := event.NewChannelBus()
	defer bus.Close()
	sub := bus.Subscribe()
	defer sub.Close()

	w, err := worker.New(store, commands, effects, bus, worker.WithPullInterval(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("effect never executed")
	}

	require.Eventually(t, func() bool {
		return w.Stats().JobsSucceeded == 1
	}, time.Second, 10*time.Millisecond)

	recvCtx, recvCancel := context.WithTimeout(context.Background(), time.Second)
	defer recvCancel()
	msg, err := sub.Receive(recvCtx)
	require.NoError(t, err)
	env, ok := msg.(event.EventEnvelope)
	require.True(t, ok)
	assert.Equal(t, event.RoleTerminal, env.Role)
}

func TestWorker_RetryableFailureRetries(t *testing.T) {
	store := jobstore.NewMemoryStorage()
	mustEnqueue(t, store, 5)

	var calls int
	commands, effects := newTestRegistries(t, func(ctx context.Context, p sendWelcomeEmail) (any, error) {
		calls++
		return nil, errors.New("smtp timeout")
	})

	w, err := worker.New(store, commands, effects, nil, worker.WithPullInterval(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()

	require.Eventually(t, func() bool {
		return w.Stats().JobsFailed >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(0), stats.DeadLetter)
}

func TestWorker_NonRetryableFailureDeadLetters(t *testing.T) {
	store := jobstore.NewMemoryStorage()
	mustEnqueue(t, store, 5)

	commands, effects := newTestRegistries(t, func(ctx context.Context, p sendWelcomeEmail) (any, error) {
		return nil, effect.NonRetryable(errors.New("invalid recipient"))
	})

	w, err := worker.New(store, commands, effects, nil, worker.WithPullInterval(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()

	require.Eventually(t, func() bool {
		return w.Stats().JobsFailed >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.DeadLetter)
	assert.Equal(t, int64(0), stats.Pending)
}

func TestWorker_StopBeforeStartErrors(t *testing.T) {
	store := jobstore.NewMemoryStorage()
	commands, effects := newTestRegistries(t, func(ctx context.Context, p sendWelcomeEmail) (any, error) {
		return nil, nil
	})

	w, err := worker.New(store, commands, effects, nil)
	require.NoError(t, err)

	err = w.Stop()
	assert.ErrorIs(t, err, worker.ErrNotStarted)
}

func TestNew_NilStorage(t *testing.T) {
	_, err := worker.New(nil, nil, nil, nil)
	assert.ErrorIs(t, err, worker.ErrStorageNil)
}
