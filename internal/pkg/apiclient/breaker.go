package apiclient

import (
	"fmt"
	"sync"
	"time"

	"geminikit/internal/core"
)

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int
	// SuccessThreshold is the number of successful trial requests that close it again
	SuccessThreshold int
	// Timeout is how long the circuit stays open before a trial request is let through
	Timeout time.Duration
}

// CircuitState is the position of the circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return fmt.Sprintf("circuit(%d)", int(s))
}

// breaker fails requests fast while the API keeps failing.
// When half-open, at most one trial request is in flight.
type breaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     CircuitState
	failures  int
	successes int
	trialBusy bool
	openedAt  time.Time
}

func newBreaker(cfg CircuitBreakerConfig) *breaker {
	cfg.FailureThreshold = max(cfg.FailureThreshold, 1)
	cfg.SuccessThreshold = max(cfg.SuccessThreshold, 1)
	return &breaker{cfg: cfg, now: time.Now}
}

// acquire admits a request. trial is true for the single request let through
// a half-open circuit and must be passed back to release.
func (b *breaker) acquire() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitOpen:
		wait := b.cfg.Timeout - b.now().Sub(b.openedAt)
		if wait > 0 {
			return false, core.NewTransportError(
				fmt.Sprintf("circuit breaker is open, next attempt allowed in %s", wait.Round(time.Millisecond)), nil)
		}
		b.state = CircuitHalfOpen
		b.successes = 0
	case CircuitHalfOpen:
		if b.trialBusy {
			return false, core.NewTransportError("circuit breaker is half-open and a trial request is in flight", nil)
		}
	default:
		return false, nil
	}
	b.trialBusy = true
	return true, nil
}

// release records the outcome of an admitted request.
func (b *breaker) release(trial, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialBusy = false
		if b.state != CircuitHalfOpen {
			return
		}
		if !ok {
			b.trip()
			return
		}
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = CircuitClosed
			b.failures = 0
		}
		return
	}

	if b.state != CircuitClosed {
		return
	}
	if ok {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.cfg.FailureThreshold {
		b.trip()
	}
}

func (b *breaker) trip() {
	b.state = CircuitOpen
	b.openedAt = b.now()
	b.successes = 0
}

func (b *breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
