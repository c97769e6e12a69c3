// Package circuitbreaker guards outbound notification sinks. After repeated
// failures the breaker opens and calls fail fast until a cool-down passes;
// then a limited number of probes decide whether to close again.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrOpen is returned by Call while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// State is the circuit breaker state (Closed, Open, HalfOpen).
type State int

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker parameters. Zero values take the defaults in New.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Component        string

	// IsFailure decides whether an error counts toward opening. Nil counts every error.
	IsFailure func(error) bool

	// OnStateChange is called after each transition, outside the breaker's lock.
	OnStateChange func(component string, from, to State)

	Clock clockwork.Clock
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	halfOpenCalls   int
	lastFailureTime time.Time

	cfg Config
}

// New creates a CircuitBreaker with the given config.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &CircuitBreaker{state: StateClosed, cfg: cfg}
}

// Call runs fn when the circuit allows it. While open it returns ErrOpen until
// Timeout has elapsed, then admits up to SuccessThreshold concurrent probes.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	var transition func()
	switch cb.state {
	case StateOpen:
		if cb.cfg.Clock.Since(cb.lastFailureTime) < cb.cfg.Timeout {
			cb.mu.Unlock()
			return fmt.Errorf("%s: %w", cb.cfg.Component, ErrOpen)
		}
		transition = cb.setStateLocked(StateHalfOpen)
		cb.halfOpenCalls = 1
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.cfg.SuccessThreshold {
			cb.mu.Unlock()
			return fmt.Errorf("%s: %w", cb.cfg.Component, ErrOpen)
		}
		cb.halfOpenCalls++
	}
	cb.mu.Unlock()
	if transition != nil {
		transition()
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	failed := err != nil && (cb.cfg.IsFailure == nil || cb.cfg.IsFailure(err))

	cb.mu.Lock()
	var transition func()
	if failed {
		cb.failureCount++
		cb.lastFailureTime = cb.cfg.Clock.Now()
		if cb.state == StateHalfOpen || cb.failureCount >= cb.cfg.FailureThreshold {
			transition = cb.setStateLocked(StateOpen)
		}
	} else {
		cb.failureCount = 0
		if cb.state == StateHalfOpen {
			cb.successCount++
			if cb.successCount >= cb.cfg.SuccessThreshold {
				transition = cb.setStateLocked(StateClosed)
			}
		}
	}
	cb.mu.Unlock()
	if transition != nil {
		transition()
	}
}

// setStateLocked switches state, resets counters and returns the callback to run after unlocking.
func (cb *CircuitBreaker) setStateLocked(to State) func() {
	from := cb.state
	cb.state = to
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfOpenCalls = 0
	if cb.cfg.OnStateChange == nil || from == to {
		return nil
	}
	component := cb.cfg.Component
	return func() { cb.cfg.OnStateChange(component, from, to) }
}

// State returns the current state (for metrics and health).
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Component returns the configured component name.
func (cb *CircuitBreaker) Component() string {
	return cb.cfg.Component
}
