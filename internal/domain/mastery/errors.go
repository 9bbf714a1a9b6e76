package mastery

import "errors"

// Sentinel kinds for mastery errors.
var (
	ErrInvalidPolicy = errors.New("invalid mastery policy")
	ErrUnknownBucket = errors.New("unknown mastery bucket")
)
