package domain

import "errors"

var (
	// ErrMatchResultNotFound is returned when a match result cannot be found by id
	ErrMatchResultNotFound = errors.New("match result not found")

	// ErrJobDescriptionNotFound is returned when the referenced job description is absent
	ErrJobDescriptionNotFound = errors.New("job description not found")

	// ErrNoMatches is returned when a job description has no stored match results
	ErrNoMatches = errors.New("no match results found for the given job description")

	// ErrMatchingFailed is returned when the matching engine produced no result
	ErrMatchingFailed = errors.New("matching engine produced no result")
)

// RetryableError wraps transient errors that should trigger a requeue
// when a recompute request is processed from the queue.
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
