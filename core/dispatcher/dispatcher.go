// Package dispatcher routes a Machine's decided Command to either an
// in-process Effect (Inline) or a durable jobstore.Storage row
// (Background/Scheduled), per spec §4.4. A routing failure — bad
// serialization, a missing JobSpec, an unregistered job_type — never
// panics the runtime: it raises a DispatchError to the caller and emits
// a CommandFailed event on the bus so observers can react.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/seesaw/core/command"
	"github.com/dmitrymomot/seesaw/core/effect"
	"github.com/dmitrymomot/seesaw/core/event"
	"github.com/dmitrymomot/seesaw/core/jobstore"
)

// Dispatcher routes Commands produced by Machine.Decide.
type Dispatcher struct {
	effects  *effect.Registry
	commands *command.Registry
	store    jobstore.Storage
	bus      event.Bus
}

// New builds a Dispatcher. commands and store may be nil if this
// dispatcher only ever routes Inline commands; Dispatch returns
// ErrStoreNil the first time a Background or Scheduled command needs
// one.
func New(effects *effect.Registry, commands *command.Registry, store jobstore.Storage, bus event.Bus) (*Dispatcher, error) {
	if effects == nil {
		return nil, ErrEffectsNil
	}
	return &Dispatcher{effects: effects, commands: commands, store: store, bus: bus}, nil
}

// Dispatch routes cmd according to its ExecutionMode. correlationID and
// sequence identify the envelope that produced cmd, so the resulting
// event (or CommandFailed) can be re-emitted under the same correlation.
//
// Dispatch itself never returns the effect's domain error for Inline
// commands — that failure becomes a CommandFailed event instead, since
// an inline command has no job store to retry through. Dispatch's
// return value reports only routing failures (DispatchError) or store
// errors for queued commands.
func (d *Dispatcher) Dispatch(ctx context.Context, correlationID uuid.UUID, sequence int, cmd command.Command) error {
	switch cmd.Mode {
	case command.Inline:
		return d.dispatchInline(ctx, correlationID, sequence, cmd)
	case command.Background:
		return d.dispatchQueued(ctx, correlationID, sequence, cmd, nil)
	case command.Scheduled:
		return d.dispatchQueued(ctx, correlationID, sequence, cmd, &cmd.RunAt)
	default:
		err := fmt.Errorf("unknown execution mode %v", cmd.Mode)
		d.emitFailure(correlationID, sequence, "", err)
		return &DispatchError{Reason: "unknown execution mode", Err: err}
	}
}

func (d *Dispatcher) dispatchInline(ctx context.Context, correlationID uuid.UUID, sequence int, cmd command.Command) error {
	if cmd.Spec != nil {
		d.emitFailure(correlationID, sequence, "", command.ErrSpecOnInline)
		return &DispatchError{Reason: "inline command carries a job spec", Err: command.ErrSpecOnInline}
	}

	typeName := command.TypeName(cmd.Payload)
	e, ok := d.effects.Lookup(typeName)
	if !ok {
		err := fmt.Errorf("no effect registered for command type %q", typeName)
		d.emitFailure(correlationID, sequence, typeName, err)
		return &DispatchError{Reason: "missing registry entry", Err: err}
	}

	outcome, err := e.Execute(ctx, cmd)
	if err != nil {
		d.emitFailure(correlationID, sequence, typeName, err)
		return nil
	}

	if outcome != nil && d.bus != nil {
		d.bus.Emit(event.NewEnvelope(correlationID, event.RoleIntermediate, sequence, outcome))
	}
	return nil
}

func (d *Dispatcher) dispatchQueued(ctx context.Context, correlationID uuid.UUID, sequence int, cmd command.Command, runAt *time.Time) error {
	if cmd.Spec == nil {
		d.emitFailure(correlationID, sequence, "", command.ErrMissingSpec)
		return &DispatchError{Reason: "missing job spec", Err: command.ErrMissingSpec}
	}
	if d.store == nil {
		d.emitFailure(correlationID, sequence, cmd.Spec.JobType, ErrStoreNil)
		return &DispatchError{Reason: "no job store configured", Err: ErrStoreNil}
	}
	if d.commands != nil && !d.commands.Has(cmd.Spec.JobType) {
		err := fmt.Errorf("job_type %q has no registered deserializer", cmd.Spec.JobType)
		d.emitFailure(correlationID, sequence, cmd.Spec.JobType, err)
		return &DispatchError{Reason: "missing registry entry", Err: err}
	}

	payload, err := json.Marshal(cmd.Payload)
	if err != nil {
		d.emitFailure(correlationID, sequence, cmd.Spec.JobType, err)
		return &DispatchError{Reason: "serialization failure", Err: err}
	}

	spec := jobstore.EnqueueSpec{
		JobType:    cmd.Spec.JobType,
		Payload:    payload,
		Priority:   cmd.Spec.Priority,
		MaxRetries: cmd.Spec.MaxRetries,
	}

	var jobID uuid.UUID
	if runAt != nil {
		jobID, err = d.store.Schedule(ctx, spec, *runAt)
	} else {
		jobID, err = d.store.Enqueue(ctx, spec)
	}
	if err != nil {
		return fmt.Errorf("dispatcher: store: %w", err)
	}

	if d.bus != nil {
		d.bus.Emit(event.NewEnvelope(correlationID, event.RoleIntermediate, sequence, JobEnqueued{JobID: jobID, JobType: cmd.Spec.JobType}))
	}
	return nil
}

func (d *Dispatcher) emitFailure(correlationID uuid.UUID, sequence int, jobType string, cause error) {
	if d.bus == nil {
		return
	}
	d.bus.Emit(event.NewEnvelope(correlationID, event.RoleTerminal, sequence, CommandFailed{
		CorrelationID: correlationID,
		JobType:       jobType,
		Cause:         cause,
	}))
}

// JobEnqueued is emitted whenever a Background or Scheduled command is
// durably recorded, carrying the store-assigned job id for observers
// that want to correlate later ListDeadLetter/Requeue activity back to
// the dispatch that created it.
type JobEnqueued struct {
	JobID   uuid.UUID
	JobType string
}
