package crosspost

import "errors"

var (
	// ErrPostFailed indicates the feed post could not be written. Callers
	// surface this as a warning next to the successful check-in, never as a
	// publish failure.
	ErrPostFailed = errors.New("crosspost failed")
)
