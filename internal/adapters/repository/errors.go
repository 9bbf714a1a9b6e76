package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrDuplicate     = errors.New("attempt already stored")
	ErrMissingID     = errors.New("attempt id is required")
	ErrClosed        = errors.New("store closed")
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrOpenStore     = errors.New("open store failed")
	ErrMalformedRow  = errors.New("malformed attempt row")
)
