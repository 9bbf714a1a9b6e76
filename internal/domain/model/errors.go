package model

import "errors"

// Sentinel kinds for invalid attempts.
var (
	ErrZeroTotal         = errors.New("total must be positive")
	ErrNegativeScore     = errors.New("score must not be negative")
	ErrScoreExceedsTotal = errors.New("score exceeds total")
	ErrMissingTimestamp  = errors.New("missing timestamp")
	ErrAnswersMismatch   = errors.New("answers length does not match total")
)
