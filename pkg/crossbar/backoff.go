package crossbar

import "time"

const (
	baseDelay = 200 * time.Millisecond
	maxDelay  = 5 * time.Second
)

// retryDelay returns the exponential backoff duration before retry attempt n
// (0-based): baseDelay * 2^n, capped at maxDelay.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		return baseDelay
	}
	if attempt > 20 {
		return maxDelay
	}
	d := baseDelay * time.Duration(1<<attempt)
	if d > maxDelay {
		return maxDelay
	}
	return d
}
