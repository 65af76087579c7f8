package event

import (
	"reflect"

	"github.com/google/uuid"
)

// Role classifies an envelope's position within a correlated chain of
// events: the first event a workflow produces, an intermediate step, or
// the event that closes the workflow out.
type Role string

const (
	// RoleInitial marks the first envelope published for a correlation id.
	RoleInitial Role = "initial"

	// RoleIntermediate marks any envelope between the first and the last.
	RoleIntermediate Role = "intermediate"

	// RoleTerminal marks the envelope that closes out a workflow: no
	// further commands are expected to follow from it. Informational for
	// subscribers — the engine's inflight tracker decrements on every
	// envelope once processed, regardless of Role.
	RoleTerminal Role = "terminal"
)

// EventEnvelope wraps an opaque event payload with the metadata the
// runtime needs to route and correlate it: a stable correlation id, the
// envelope's role within that correlation, and a monotonic sequence
// number. An envelope's correlation id is immutable once created and the
// envelope itself never mutates in place — construct a new one instead.
type EventEnvelope struct {
	CorrelationID uuid.UUID
	Role          Role
	Sequence      int
	Payload       any
}

// NewEnvelope builds an EventEnvelope around an application payload.
func NewEnvelope(correlationID uuid.UUID, role Role, sequence int, payload any) EventEnvelope {
	return EventEnvelope{
		CorrelationID: correlationID,
		Role:          role,
		Sequence:      sequence,
		Payload:       payload,
	}
}

// Name returns the payload's type name. Pointer types are dereferenced
// first. Typed subscriptions and machine dispatch match on the payload's
// Go type, not on this name.
func (e EventEnvelope) Name() string {
	return payloadName(e.Payload)
}

// Lagged is delivered to a subscriber whose buffer could not keep up with
// the publisher. N is the number of incoming events dropped, because the
// buffer was full, since the previous Lagged signal. Receive returns it
// once the envelopes still in the buffer have been received; the dropped
// events themselves are not recoverable.
type Lagged struct {
	N int
}

func payloadName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
