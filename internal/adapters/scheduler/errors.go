package scheduler

import "errors"

var (
	// ErrInvalidJob is returned for jobs without a name, function or positive interval.
	ErrInvalidJob = errors.New("invalid job")
	// ErrDuplicateJob is returned when a job name is registered twice.
	ErrDuplicateJob = errors.New("job already registered")
	// ErrUnknownJob is returned by RunNow for an unregistered name.
	ErrUnknownJob = errors.New("unknown job")
	// ErrAlreadyStarted is returned when jobs are added or Start is called on a running scheduler.
	ErrAlreadyStarted = errors.New("scheduler already started")
)
