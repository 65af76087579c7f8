package worker

import "errors"

var (
	// ErrStorageNil is returned by New when storage is nil.
	ErrStorageNil = errors.New("worker: storage must not be nil")

	// ErrAlreadyStarted is returned by Start when called on a worker
	// that is already running.
	ErrAlreadyStarted = errors.New("worker: already started")

	// ErrNotStarted is returned by Stop when called on a worker that was
	// never started.
	ErrNotStarted = errors.New("worker: not started")
)
