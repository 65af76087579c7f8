// Package machine defines the pure decision contract of the engine:
// Machine.Decide maps one incoming event to an optional outgoing command.
//
// Machines are pure with respect to I/O. Decide MUST NOT block, await, or
// call external services; it may hold and mutate internal state, but the
// runtime guarantees Decide is never invoked concurrently on the same
// Machine instance, so that internal state needs no synchronization of its
// own. Given the same sequence of events, a Machine must produce the same
// sequence of commands — this determinism is what makes event replay a
// valid crash-recovery and testing strategy at the engine layer.
package machine

import (
	"github.com/dmitrymomot/seesaw/core/command"
	"github.com/dmitrymomot/seesaw/core/event"
)

// Machine decides what, if anything, should happen in response to an
// event. Implementations must not perform I/O from Decide.
type Machine interface {
	// Decide inspects env and returns a command to dispatch, or ok=false
	// if this event requires no action from this machine.
	Decide(env event.EventEnvelope) (cmd command.Command, ok bool)
}

// Func adapts a plain function to the Machine interface.
type Func func(env event.EventEnvelope) (command.Command, bool)

// Decide implements Machine.
func (f Func) Decide(env event.EventEnvelope) (command.Command, bool) {
	return f(env)
}

// Typed narrows Decide to events whose payload matches T, so individual
// machines can be written against a concrete event type without a type
// switch. Events whose payload does not match T are ignored (ok=false).
type Typed[T any] func(correlationEnvelope event.EventEnvelope, payload T) (command.Command, bool)

// Decide implements Machine, filtering by payload type before delegating
// to the wrapped function.
func (t Typed[T]) Decide(env event.EventEnvelope) (command.Command, bool) {
	payload, ok := env.Payload.(T)
	if !ok {
		return command.Command{}, false
	}
	return t(env, payload)
}
