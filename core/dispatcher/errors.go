package dispatcher

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrEffectsNil is returned by New when the effect registry is nil.
	ErrEffectsNil = errors.New("dispatcher: effect registry must not be nil")

	// ErrStoreNil is returned when a Background or Scheduled command is
	// dispatched but no job store was configured.
	ErrStoreNil = errors.New("dispatcher: job store must not be nil for non-inline dispatch")
)

// DispatchError is a routing-level failure: the command never reached an
// effect or the job store. It always accompanies a CommandFailed event
// emitted on the bus — see spec §4.4/§7.
type DispatchError struct {
	Reason string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatcher: %s: %s", e.Reason, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// CommandFailed is the terminal event re-emitted on the bus whenever a
// command cannot complete: a dispatch-level routing failure, or an
// inline effect that returned an error (inline commands have no job
// store to retry through).
type CommandFailed struct {
	CorrelationID uuid.UUID
	JobType       string
	Cause         error
}

func (e CommandFailed) Error() string {
	return fmt.Sprintf("command failed (correlation_id=%s): %s", e.CorrelationID, e.Cause)
}
