package service

import "github.com/okian/tally/internal/domain/types"

// Sentinel errors returned by Service.
var (
	ErrNotStarted     = types.ErrNotStarted
	ErrInvalidAttempt = types.ErrInvalidAttempt
	ErrMissingUser    = types.ErrMissingUser
	ErrMissingSubject = types.ErrMissingSubject
	ErrBackpressure   = types.ErrBackpressure
)
