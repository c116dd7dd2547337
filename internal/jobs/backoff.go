package jobs

import "time"

// Retry delay bounds
const (
	BaseRetryDelay = time.Second
	MaxRetryDelay  = time.Hour
)

// RetryDelay returns how long to wait before retrying a job that has made
// attempts attempts: 1s after the first, 2s after the second, 4s after the
// third, doubling up to MaxRetryDelay.
func RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	shift := attempts - 1
	// 2^12 seconds already exceeds an hour.
	if shift >= 12 {
		return MaxRetryDelay
	}
	d := BaseRetryDelay << shift
	if d > MaxRetryDelay {
		return MaxRetryDelay
	}
	return d
}
