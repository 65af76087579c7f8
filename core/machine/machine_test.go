package machine_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/seesaw/core/command"
	"github.com/dmitrymomot/seesaw/core/event"
	"github.com/dmitrymomot/seesaw/core/machine"
)

type orderPlaced struct{ OrderID string }
type chargeCard struct{ OrderID string }

func TestFunc_Decide(t *testing.T) {
	var m machine.Machine = machine.Func(func(env event.EventEnvelope) (command.Command, bool) {
		op, ok := env.Payload.(orderPlaced)
		if !ok {
			return command.Command{}, false
		}
		return command.NewInline(chargeCard{OrderID: op.OrderID}), true
	})

	env := event.NewEnvelope(uuid.New(), event.RoleInitial, 0, orderPlaced{OrderID: "o1"})
	cmd, ok := m.Decide(env)
	assert.True(t, ok)
	assert.Equal(t, chargeCard{OrderID: "o1"}, cmd.Payload)

	_, ok = m.Decide(event.NewEnvelope(uuid.New(), event.RoleInitial, 0, chargeCard{}))
	assert.False(t, ok)
}

func TestTyped_Decide_IgnoresMismatchedPayload(t *testing.T) {
	var calls int
	m := machine.Typed[orderPlaced](func(env event.EventEnvelope, p orderPlaced) (command.Command, bool) {
		calls++
		return command.NewInline(chargeCard{OrderID: p.OrderID}), true
	})

	_, ok := m.Decide(event.NewEnvelope(uuid.New(), event.RoleInitial, 0, chargeCard{}))
	assert.False(t, ok)
	assert.Equal(t, 0, calls)

	cmd, ok := m.Decide(event.NewEnvelope(uuid.New(), event.RoleInitial, 0, orderPlaced{OrderID: "o2"}))
	assert.True(t, ok)
	assert.Equal(t, 1, calls)
	assert.Equal(t, chargeCard{OrderID: "o2"}, cmd.Payload)
}
