package command

import (
	"reflect"
	"time"
)

// ExecutionMode selects how a Command reaches its Effect: immediately on
// the calling task, or durably through the job store.
type ExecutionMode int

const (
	// Inline executes the command's effect synchronously on the current
	// task and re-emits the resulting event on the bus.
	Inline ExecutionMode = iota

	// Background enqueues the command as a job runnable as soon as a
	// worker claims it.
	Background

	// Scheduled enqueues the command as a job that becomes claimable only
	// once its RunAt has passed.
	Scheduled
)

// String implements fmt.Stringer for log output.
func (m ExecutionMode) String() string {
	switch m {
	case Inline:
		return "inline"
	case Background:
		return "background"
	case Scheduled:
		return "scheduled"
	default:
		return "unknown"
	}
}

// JobSpec names the durable identity and retry/priority policy of a
// Background or Scheduled command. Required whenever ExecutionMode is not
// Inline; the dispatcher rejects a non-inline command with no JobSpec.
type JobSpec struct {
	// JobType is the stable identifier the command registry uses to
	// rebuild this command's concrete type from a stored payload.
	JobType string

	// Priority orders claim_ready; smaller values run first.
	Priority int

	// MaxRetries bounds the retry count before a job moves to the dead
	// letter status.
	MaxRetries int
}

// Command is a single unit of intent produced by a Machine's Decide. It
// carries everything the Dispatcher needs to route it: how it should run,
// and — for anything but Inline — where it should be durably recorded.
type Command struct {
	// Mode selects Inline, Background, or Scheduled routing.
	Mode ExecutionMode

	// RunAt is only meaningful when Mode is Scheduled; the job becomes
	// claimable once run_at <= now.
	RunAt time.Time

	// Spec is required when Mode != Inline.
	Spec *JobSpec

	// Payload is the command's domain value. It is opaque to the
	// dispatcher and job store except that non-inline payloads must
	// round-trip through the registry's serializer/deserializer pair.
	Payload any
}

// TypeName derives a stable name for Payload via reflection, dereferencing
// pointers down to the named struct type. The dispatcher uses it as the
// key for looking up an Inline command's effect.
func TypeName(payload any) string {
	t := reflect.TypeOf(payload)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// NewInline builds an ExecutionMode-Inline command around payload.
func NewInline(payload any) Command {
	return Command{Mode: Inline, Payload: payload}
}

// NewBackground builds an ExecutionMode-Background command whose Spec
// points at a copy of spec; the dispatcher rejects a Background command
// with no spec.
func NewBackground(payload any, spec JobSpec) Command {
	return Command{Mode: Background, Spec: &spec, Payload: payload}
}

// NewScheduled builds an ExecutionMode-Scheduled command that becomes
// claimable at runAt.
func NewScheduled(payload any, spec JobSpec, runAt time.Time) Command {
	return Command{Mode: Scheduled, Spec: &spec, RunAt: runAt, Payload: payload}
}
