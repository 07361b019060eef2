// Package marketdata holds transport-agnostic wrappers around model.MarketData.
package marketdata

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = 0 // requests pass through
	StateOpen     State = 1 // requests rejected immediately
	StateHalfOpen State = 2 // one probe request allowed through
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker opens after maxFailures consecutive failures and rejects
// calls for resetTimeout. It then lets one probe through: success closes it,
// failure reopens it.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time
	probing      bool

	// IsFailure decides whether an error counts against the breaker.
	// Nil counts every non-nil error.
	IsFailure func(error) bool

	OnStateChange func(from, to State)
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// Execute runs fn through the circuit breaker.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) <= cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasProbe := cb.state == StateHalfOpen
	cb.probing = false

	if err != nil && (cb.IsFailure == nil || cb.IsFailure(err)) {
		cb.failures++
		cb.lastFailure = time.Now()
		if wasProbe || cb.failures >= cb.maxFailures {
			cb.transition(StateOpen)
		}
		return err
	}

	if wasProbe {
		cb.transition(StateClosed)
	}
	cb.failures = 0
	return err
}

// CurrentState returns the current circuit breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
