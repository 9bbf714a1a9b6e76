package progress

import "errors"

// Sentinel kinds for progress errors.
var (
	ErrOutOfOrder = errors.New("attempt older than last folded attempt")
)
