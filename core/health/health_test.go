package health_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/seesaw/core/health"
)

func TestRun_AllPass(t *testing.T) {
	err := health.Run(context.Background(),
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return nil },
	)
	assert.NoError(t, err)
}

func TestRun_JoinsFailures(t *testing.T) {
	errA := errors.New("db unreachable")
	errB := errors.New("queue unreachable")

	err := health.Run(context.Background(),
		func(ctx context.Context) error { return errA },
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return errB },
	)

	require := assert.New(t)
	require.Error(err)
	require.ErrorIs(err, errA)
	require.ErrorIs(err, errB)
}

func TestRun_NoChecks(t *testing.T) {
	assert.NoError(t, health.Run(context.Background()))
}
