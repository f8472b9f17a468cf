package engine

import "time"

// RetryPolicy decides whether a failed item gets another transport
// attempt, and how long the item sits out before it is eligible again
type RetryPolicy struct {
	// MaxAttempts is the total transport-invocation budget per item.
	MaxAttempts int
	// BaseBackoff is the delay after the first failed attempt; each
	// subsequent failure doubles it.
	BaseBackoff time.Duration
}

// ShouldRetry reports whether an item that has already made the given
// number of attempts is allowed another one
func (p RetryPolicy) ShouldRetry(attempts int) bool {
	return attempts < p.MaxAttempts
}

// BackoffDelay returns the exponential backoff after the given attempt
// number (1-based): BaseBackoff × 2^(attempt-1). The backoff only gates
// when the retried item becomes eligible again; the item still re-enters
// the normal queued pool and is subject to ordinary pacing when its turn
// comes around.
func (p RetryPolicy) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseBackoff << uint(attempt-1)
}
