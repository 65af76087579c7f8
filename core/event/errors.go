package event

import "errors"

var (
	// ErrSubscriberClosed is returned by Receive once a subscriber has
	// been closed, either explicitly or because its bus was closed.
	ErrSubscriberClosed = errors.New("event: subscriber closed")
)
