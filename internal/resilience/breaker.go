package resilience

import (
	"sync"

	"github.com/rotisserie/eris"
)

// ErrBreakerTripped is returned by Allow once the consecutive-failure
// threshold has been reached.
var ErrBreakerTripped = eris.New("too many consecutive failures, run stopped")

// Breaker stops a long-running driver after a small number of consecutive
// unit failures. Unlike a half-open circuit breaker it never recovers on its
// own: once tripped, the run is over and the caller resumes manually from the
// last successful offset.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	failures  int
	tripped   bool
}

// NewBreaker creates a breaker that trips after threshold consecutive
// failures. A threshold <= 0 defaults to 3.
func NewBreaker(threshold int) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &Breaker{threshold: threshold}
}

// Allow reports whether the next unit of work may proceed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tripped {
		return ErrBreakerTripped
	}
	return nil
}

// Record notes the outcome of one unit of work. Any success resets the
// consecutive-failure count.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.tripped = true
	}
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Tripped reports whether the breaker has stopped the run.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}
