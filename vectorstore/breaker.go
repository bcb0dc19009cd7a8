package vectorstore

import (
	"errors"
	"sync"
	"time"

	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/storage"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards the document store.
//
// Closed permits calls. threshold consecutive failures open it for reset;
// open calls fail fast with *core.CircuitOpenError. After reset one trial call
// is let through (half-open): success closes the circuit and clears the
// failure count, failure reopens it for another reset period.
type CircuitBreaker struct {
	name  string
	reset time.Duration
	cb    *gobreaker.CircuitBreaker[any]

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	openedAt    time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, threshold int, reset time.Duration, onChange func(from, to core.CircuitState)) *CircuitBreaker {
	b := &CircuitBreaker{name: name, reset: reset}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     reset,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				b.mu.Lock()
				b.openedAt = time.Now()
				b.mu.Unlock()
			}
			if onChange != nil {
				onChange(circuitState(from), circuitState(to))
			}
		},
	})
	return b
}

// countsAsSuccess keeps caller mistakes from tripping the breaker.
func countsAsSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrInvalidQuery) ||
		errors.Is(err, core.ErrValidation) ||
		errors.Is(err, core.ErrDimensionMismatch)
}

// Execute runs fn if the circuit permits it.
func (b *CircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &core.CircuitOpenError{Name: b.name, NextRetryAt: b.nextRetryAt()}
	}
	b.mu.Lock()
	if countsAsSuccess(err) {
		b.failures = 0
	} else {
		b.failures++
		b.lastFailure = time.Now()
	}
	b.mu.Unlock()
	return result, err
}

func (b *CircuitBreaker) nextRetryAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openedAt.IsZero() {
		return time.Time{}
	}
	return b.openedAt.Add(b.reset)
}

// State returns a snapshot of the breaker.
func (b *CircuitBreaker) State() core.CircuitBreakerState {
	state := circuitState(b.cb.State())

	b.mu.Lock()
	defer b.mu.Unlock()
	s := core.CircuitBreakerState{
		State:       state,
		Failures:    b.failures,
		LastFailure: b.lastFailure,
	}
	if state == core.CircuitOpen {
		s.NextRetryAt = b.openedAt.Add(b.reset)
	}
	return s
}

func circuitState(s gobreaker.State) core.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return core.CircuitOpen
	case gobreaker.StateHalfOpen:
		return core.CircuitHalfOpen
	default:
		return core.CircuitClosed
	}
}
