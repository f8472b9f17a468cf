package engine

import (
	"math/rand"
	"time"
)

// MinSendDelay is the unconditional floor on the pacing delay. It holds
// regardless of configuration so a bad interval can never produce a
// zero-delay hammering loop against the transport.
const MinSendDelay = time.Second

// jitterFraction is the spread applied around the base interval when
// jitter is enabled: delays are drawn uniformly from
// [interval*(1-0.3), interval*(1+0.3)].
const jitterFraction = 0.3

// Pacer computes the delay between consecutive transport invocations
type Pacer struct {
	interval time.Duration
	jitter   bool
	rand     *rand.Rand
}

// NewPacer creates a pacer for the given base interval. With jitter
// enabled the delay varies randomly so the send pattern is not
// perfectly periodic.
func NewPacer(interval time.Duration, jitter bool) *Pacer {
	return &Pacer{
		interval: interval,
		jitter:   jitter,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextDelay returns the wait to apply before the next send
func (p *Pacer) NextDelay() time.Duration {
	delay := p.interval

	if p.jitter {
		factor := 1 - jitterFraction + p.rand.Float64()*2*jitterFraction
		delay = time.Duration(float64(delay) * factor)
	}

	if delay < MinSendDelay {
		delay = MinSendDelay
	}

	return delay
}
