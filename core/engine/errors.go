package engine

import "errors"

var (
	// ErrNoMachines is returned by Build if no machine was registered;
	// an engine with nothing to Decide events would never dispatch
	// anything.
	ErrNoMachines = errors.New("engine: at least one machine must be registered")

	// ErrAlreadyStarted is returned by Start when called on a Handle
	// that is already running.
	ErrAlreadyStarted = errors.New("engine: already started")

	// ErrNotStarted is returned by Shutdown when called on a Handle
	// that was never started.
	ErrNotStarted = errors.New("engine: not started")
)
