package command_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/seesaw/core/command"
)

func TestRegistry_RegisterAndDeserialize(t *testing.T) {
	reg := command.NewRegistry()

	err := reg.Register("charge_card", func(payload []byte) (any, error) {
		var c chargeCard
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	})
	require.NoError(t, err)
	assert.True(t, reg.Has("charge_card"))

	raw, err := json.Marshal(chargeCard{OrderID: "o1", Cents: 250})
	require.NoError(t, err)

	v, err := reg.Deserialize("charge_card", raw)
	require.NoError(t, err)
	assert.Equal(t, chargeCard{OrderID: "o1", Cents: 250}, v)
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	reg := command.NewRegistry()
	noop := func(payload []byte) (any, error) { return nil, nil }

	require.NoError(t, reg.Register("charge_card", noop))
	err := reg.Register("charge_card", noop)
	assert.ErrorIs(t, err, command.ErrAlreadyRegistered)
}

func TestRegistry_DeserializeUnregisteredJobType(t *testing.T) {
	reg := command.NewRegistry()

	_, err := reg.Deserialize("unknown", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, command.ErrJobTypeNotRegistered)

	var derr *command.DeserializationError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "unknown", derr.JobType)
}

func TestRegistry_DeserializerFailure(t *testing.T) {
	reg := command.NewRegistry()
	boom := errors.New("malformed payload")
	require.NoError(t, reg.Register("charge_card", func(payload []byte) (any, error) {
		return nil, boom
	}))

	_, err := reg.Deserialize("charge_card", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
