package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimitExceeded is returned when a user has used up the job
	// allowance for a job type in the current window.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrUnavailable is returned when usage could not be read. Admission
	// fails closed in that case.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// ExceededError carries the decision details of a denied admission.
type ExceededError struct {
	Remaining int
	ResetAt   time.Time
}

// Error implements the error interface.
func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s: remaining=%d, resets at %s",
		ErrRateLimitExceeded, e.Remaining, e.ResetAt.UTC().Format(time.RFC3339))
}

// Unwrap allows errors.Is(err, ErrRateLimitExceeded).
func (e *ExceededError) Unwrap() error {
	return ErrRateLimitExceeded
}

// RetryAfter returns how long the caller should wait from now before the
// window frees a slot. It is never negative.
func (e *ExceededError) RetryAfter(now time.Time) time.Duration {
	d := e.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
