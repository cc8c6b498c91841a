package events

import "errors"

// Predefined errors for the events package.
var (
	// ErrNilSink indicates an emitter was created without a delivery sink.
	ErrNilSink = errors.New("events: sink cannot be nil")
)
