package fetch

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFetchInFlight is returned to a caller that tries to start a fetch
	// while another one is still running. The call is not queued.
	ErrFetchInFlight = errors.New("fetch already in flight")

	// ErrEmptyResult means the store answered with zero records. The guard
	// falls back immediately instead of retrying.
	ErrEmptyResult = errors.New("store returned no listings")

	// ErrTooManyAttempts is reported once the attempt cap is reached. The
	// last attempt's failure is wrapped alongside it.
	ErrTooManyAttempts = errors.New("too many fetch attempts")
)

// FetchError wraps a store failure with the attempt it happened on.
type FetchError struct {
	Attempt int
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.Attempt, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// TimeoutError is an attempt that did not settle within its budget.
type TimeoutError struct {
	Attempt int
	Budget  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("attempt %d timed out after %s", e.Attempt, e.Budget)
}

func (e *TimeoutError) Timeout() bool { return true }
