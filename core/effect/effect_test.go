package effect_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/seesaw/core/command"
	"github.com/dmitrymomot/seesaw/core/effect"
)

type chargeCard struct{ OrderID string }
type cardCharged struct{ OrderID string }

func TestTyped_Execute(t *testing.T) {
	var e effect.Effect = effect.Typed[chargeCard](func(ctx context.Context, p chargeCard) (any, error) {
		return cardCharged{OrderID: p.OrderID}, nil
	})

	outcome, err := e.Execute(context.Background(), command.NewInline(chargeCard{OrderID: "o1"}))
	require.NoError(t, err)
	assert.Equal(t, cardCharged{OrderID: "o1"}, outcome)
}

func TestTyped_Execute_PayloadMismatchIsNonRetryable(t *testing.T) {
	e := effect.Typed[chargeCard](func(ctx context.Context, p chargeCard) (any, error) {
		return cardCharged{}, nil
	})

	_, err := e.Execute(context.Background(), command.NewInline(cardCharged{OrderID: "o1"}))
	require.Error(t, err)
	assert.False(t, effect.IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	base := errors.New("connection reset")
	assert.True(t, effect.IsRetryable(base))
	assert.False(t, effect.IsRetryable(effect.NonRetryable(base)))
	assert.False(t, effect.IsRetryable(nil))
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	reg := effect.NewRegistry()
	noop := effect.Func(func(ctx context.Context, cmd command.Command) (any, error) { return nil, nil })

	require.NoError(t, reg.Register("chargeCard", noop))
	err := reg.Register("chargeCard", noop)
	assert.Error(t, err)

	got, ok := reg.Lookup("chargeCard")
	assert.True(t, ok)
	assert.NotNil(t, got)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}
