// Package effect defines the I/O boundary of the engine: Effect.Execute
// performs the side effects a Machine decided on and reports the outcome
// as an event.
//
// Effects are stateless: a Command carries all the input an Execute call
// needs, and any state that must survive across invocations belongs to
// the dependencies an effect closes over at construction time (a database
// handle, an HTTP client) or to the database the effect touches — never
// to the Effect value itself. This keeps effects safe to invoke
// concurrently from any number of workers.
package effect

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/seesaw/core/command"
)

// Effect performs the I/O a Command calls for and reports what happened
// as an event value suitable for re-emission on the bus. A non-nil error
// additionally tells the caller (the dispatcher for Inline commands, the
// worker for queued ones) whether the failure is worth retrying; wrap
// errors that should NOT be retried with NonRetryable.
type Effect interface {
	Execute(ctx context.Context, cmd command.Command) (outcome any, err error)
}

// Func adapts a plain function to the Effect interface.
type Func func(ctx context.Context, cmd command.Command) (any, error)

// Execute implements Effect.
func (f Func) Execute(ctx context.Context, cmd command.Command) (any, error) {
	return f(ctx, cmd)
}

// Typed narrows Execute to commands whose payload matches T, so an effect
// can be written against a concrete command payload type without an
// unchecked type assertion. A mismatched payload is reported as a
// non-retryable error: it indicates a registry/effect wiring bug, not a
// transient failure worth retrying.
type Typed[T any] func(ctx context.Context, payload T) (any, error)

// Execute implements Effect, type-asserting the command payload before
// delegating to the wrapped function.
func (t Typed[T]) Execute(ctx context.Context, cmd command.Command) (any, error) {
	payload, ok := cmd.Payload.(T)
	if !ok {
		return nil, NonRetryable(fmt.Errorf("effect: payload type mismatch: expected %T, got %T", payload, cmd.Payload))
	}
	return t(ctx, payload)
}
