package worker

import (
	"errors"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
)

var (
	// ErrInvalidEvent is returned when an event body cannot be used
	ErrInvalidEvent = errors.New("invalid job event")

	// ErrJobNotCompleted is returned when an event names a job that is not completed
	ErrJobNotCompleted = errors.New("job is not completed")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// shouldRequeue decides whether a failed event goes back on the queue.
func shouldRequeue(err error) bool {
	if errors.Is(err, ErrInvalidEvent) || errors.Is(err, ErrJobNotCompleted) {
		return false
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPreconditionFailed) {
		return false
	}

	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}
