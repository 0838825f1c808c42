// Package resilience provides retry and circuit breaking for provider calls.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	// Closed lets calls through.
	Closed BreakerState = iota
	// Open rejects calls until the reset timeout elapses.
	Open
	// HalfOpen lets one probe call through.
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when a call is rejected without being attempted.
var ErrBreakerOpen = eris.New("circuit breaker is open")

// Breaker stops calling a provider after consecutive failures and probes it
// again once the reset timeout has passed. A nil *Breaker lets every call
// through.
type Breaker struct {
	threshold    int
	resetTimeout time.Duration

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time

	now func() time.Time
}

// NewBreaker creates a closed Breaker.
func NewBreaker(threshold int, resetTimeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// Call runs fn through cb. Only errors accepted by counts are recorded as
// failures; other errors count as a healthy answer from the provider.
func Call[T any](ctx context.Context, cb *Breaker, counts func(error) bool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if cb == nil {
		return fn(ctx)
	}
	if !cb.allow() {
		return zero, ErrBreakerOpen
	}
	val, err := fn(ctx)
	cb.record(err != nil && (counts == nil || counts(err)))
	return val, err
}

// State returns the current state.
func (cb *Breaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == Open && cb.now().Sub(cb.lastFailure) >= cb.resetTimeout {
		return HalfOpen
	}
	return cb.state
}

func (cb *Breaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != Open {
		return true
	}
	if cb.now().Sub(cb.lastFailure) >= cb.resetTimeout {
		cb.setState(HalfOpen)
		return true
	}
	return false
}

func (cb *Breaker) record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !failed {
		cb.failures = 0
		if cb.state != Closed {
			cb.setState(Closed)
		}
		return
	}

	cb.failures++
	cb.lastFailure = cb.now()
	if cb.state == HalfOpen || cb.failures >= cb.threshold {
		cb.setState(Open)
	}
}

func (cb *Breaker) setState(to BreakerState) {
	if cb.state == to {
		return
	}
	zap.L().Warn("circuit breaker state change",
		zap.Stringer("from", cb.state),
		zap.Stringer("to", to),
		zap.Int("consecutive_failures", cb.failures),
	)
	cb.state = to
}
