package types

import "errors"

// Errors shared across the service boundary. Adapters map them to their own
// status codes.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrInvalidAttempt = errors.New("invalid attempt")
	ErrMissingUser    = errors.New("missing user id")
	ErrMissingSubject = errors.New("missing subject id")
	ErrBackpressure   = errors.New("backpressure")
)
