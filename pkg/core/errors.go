package core

import (
	"errors"
	"fmt"
)

// Validation errors, surfaced synchronously at enqueue time.
var (
	ErrInvalidPriority = errors.New("sched: priority must be between 1 and 10")
	ErrInvalidKindName = errors.New("sched: invalid job kind (must be alphanumeric, start with letter)")
	ErrKindNameTooLong = errors.New("sched: job kind too long")
	ErrParamsTooLarge  = errors.New("sched: job parameters exceed size limit")
)

// Lifecycle errors.
var (
	// ErrJobNotFound is returned when a job id is unknown to the store.
	ErrJobNotFound = errors.New("sched: job not found")

	// ErrClaimConflict is returned when a concurrent claim won the race.
	// Callers loop back to dequeue; this is never a job failure.
	ErrClaimConflict = errors.New("sched: job already claimed")

	// ErrJobNotOwned is returned when a worker reports an outcome for a
	// job it no longer holds, e.g. after reclamation.
	ErrJobNotOwned = errors.New("sched: job not owned by this worker")

	// ErrNotCancellable is returned when cancelling a terminal job.
	ErrNotCancellable = errors.New("sched: job is not in a cancellable state")

	// ErrNotRequeueable is returned when requeueing a job that is not
	// dead or cancelled.
	ErrNotRequeueable = errors.New("sched: only dead or cancelled jobs can be requeued")

	// ErrKindNotRegistered is returned when no handler exists for a kind.
	ErrKindNotRegistered = errors.New("sched: no handler registered for kind")
)

// NoRetryError marks a handler failure as permanent. The scheduler moves
// the job straight to dead without consuming further retries.
type NoRetryError struct {
	Err error
}

func (e *NoRetryError) Error() string {
	return fmt.Sprintf("no retry: %v", e.Err)
}

func (e *NoRetryError) Unwrap() error {
	return e.Err
}

// NoRetry wraps an error to indicate it should not be retried.
func NoRetry(err error) error {
	return &NoRetryError{Err: err}
}

// IsNoRetry reports whether err is marked as non-retryable.
func IsNoRetry(err error) bool {
	var nr *NoRetryError
	return errors.As(err, &nr)
}
