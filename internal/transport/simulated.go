package transport

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// failureReasons are the synthetic errors the simulated transport
// produces on an unsuccessful send
var failureReasons = []string{
	"network timeout",
	"recipient unreachable",
	"rate limit exceeded",
	"service temporarily unavailable",
}

// Simulated is a transport stand-in for development and tests: it
// sleeps a short synthetic latency and succeeds with a configurable
// probability.
type Simulated struct {
	successRate float64 // 0.0 to 1.0
	rand        *rand.Rand
}

// NewSimulated creates a simulated transport with the given success
// probability (clamped to [0, 1])
func NewSimulated(successRate float64) *Simulated {
	if successRate < 0.0 {
		successRate = 0.0
	}
	if successRate > 1.0 {
		successRate = 1.0
	}

	return &Simulated{
		successRate: successRate,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Ready always succeeds; the simulated transport has no preconditions
func (s *Simulated) Ready(ctx context.Context) error {
	return nil
}

// Send simulates one delivery attempt
func (s *Simulated) Send(ctx context.Context, phone, message, attachment string) error {
	// Simulated network latency (50-200ms).
	latency := time.Duration(50+s.rand.Intn(150)) * time.Millisecond
	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.rand.Float64() < s.successRate {
		return nil
	}

	reason := failureReasons[s.rand.Intn(len(failureReasons))]
	return fmt.Errorf("failed to send to %s: %s", phone, reason)
}

// SetSuccessRate updates the success probability (for tests)
func (s *Simulated) SetSuccessRate(rate float64) {
	if rate < 0.0 {
		rate = 0.0
	}
	if rate > 1.0 {
		rate = 1.0
	}
	s.successRate = rate
}
