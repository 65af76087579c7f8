package command_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/seesaw/core/command"
)

type chargeCard struct {
	OrderID string
	Cents   int
}

func TestNewInline(t *testing.T) {
	cmd := command.NewInline(chargeCard{OrderID: "o1", Cents: 500})

	assert.Equal(t, command.Inline, cmd.Mode)
	assert.Nil(t, cmd.Spec)
	assert.Equal(t, chargeCard{OrderID: "o1", Cents: 500}, cmd.Payload)
}

func TestNewBackground(t *testing.T) {
	spec := command.JobSpec{JobType: "charge_card", Priority: 5, MaxRetries: 3}
	cmd := command.NewBackground(chargeCard{OrderID: "o1"}, spec)

	assert.Equal(t, command.Background, cmd.Mode)
	if assert.NotNil(t, cmd.Spec) {
		assert.Equal(t, spec, *cmd.Spec)
	}
}

func TestNewScheduled(t *testing.T) {
	runAt := time.Now().Add(time.Hour)
	spec := command.JobSpec{JobType: "charge_card", Priority: 1, MaxRetries: 0}
	cmd := command.NewScheduled(chargeCard{OrderID: "o1"}, spec, runAt)

	assert.Equal(t, command.Scheduled, cmd.Mode)
	assert.True(t, cmd.RunAt.Equal(runAt))
	if assert.NotNil(t, cmd.Spec) {
		assert.Equal(t, spec, *cmd.Spec)
	}
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "chargeCard", command.TypeName(chargeCard{}))
	assert.Equal(t, "chargeCard", command.TypeName(&chargeCard{}))
}

func TestExecutionMode_String(t *testing.T) {
	assert.Equal(t, "inline", command.Inline.String())
	assert.Equal(t, "background", command.Background.String())
	assert.Equal(t, "scheduled", command.Scheduled.String())
}
