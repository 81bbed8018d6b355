// Package breaker provides a two-state circuit breaker with timestamped
// transitions, independent of any particular concurrency primitive.
package breaker

import (
	"sync"
	"time"
)

// State of the breaker.
type State string

const (
	StateClosed State = "CLOSED"
	StateOpen   State = "OPEN"
)

// Default configuration values.
const (
	DefaultThreshold = 5
	DefaultCooldown  = 5 * time.Minute
)

// Breaker opens after a run of consecutive qualifying failures and
// closes again once the cooldown has elapsed, resetting its counter.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
}

// Option configures Breaker.
type Option func(*Breaker)

// WithThreshold sets the consecutive-failure count that opens the breaker.
func WithThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets the open-state duration.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		b.cooldown = d
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// New creates a Breaker.
func New(opts ...Option) *Breaker {
	b := &Breaker{
		threshold: DefaultThreshold,
		cooldown:  DefaultCooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether work may proceed. When the cooldown of an open
// breaker has elapsed, the breaker closes and the counter resets.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		b.open = false
		b.failures = 0
		return true
	}
	return false
}

// RecordFailure counts a qualifying failure, opening the breaker when
// the threshold is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if !b.open && b.failures >= b.threshold {
		b.open = true
		b.openedAt = b.now()
	}
}

// RecordSuccess resets the consecutive-failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		b.failures = 0
	}
}

// State returns the current state, accounting for an elapsed cooldown.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open && b.now().Sub(b.openedAt) < b.cooldown {
		return StateOpen
	}
	return StateClosed
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
