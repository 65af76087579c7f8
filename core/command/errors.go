package command

import "errors"

var (
	// ErrMissingSpec is returned when a non-inline command carries no JobSpec.
	ErrMissingSpec = errors.New("command: job spec required for non-inline execution mode")

	// ErrSpecOnInline is returned when an Inline command carries a JobSpec.
	// Inline commands run on the caller's task and never touch the job store.
	ErrSpecOnInline = errors.New("command: job spec not allowed on inline execution mode")

	// ErrJobTypeNotRegistered is returned by the registry when no
	// deserializer is registered for a job_type.
	ErrJobTypeNotRegistered = errors.New("command: job type not registered")

	// ErrAlreadyRegistered is returned when registering a second
	// deserializer for a job_type already present in the registry.
	ErrAlreadyRegistered = errors.New("command: job type already registered")
)

// DeserializationError wraps a registry lookup or deserializer failure for
// a specific job_type, keeping the original error available via Unwrap.
type DeserializationError struct {
	JobType string
	Err     error
}

func (e *DeserializationError) Error() string {
	return "command: deserializing job_type " + e.JobType + ": " + e.Err.Error()
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}
