package limits

import (
	"sync"
	"time"
)

// breakerState is the circuit breaker's internal lifecycle.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker gates one logical LLM operation (detection, extraction,
// intent, normalization). After FailureThreshold consecutive failures it
// opens and fails fast until ResetTimeout elapses, then allows exactly one
// probe call through before deciding whether to close or re-open.
type CircuitBreaker struct {
	mu                  sync.Mutex
	state               breakerState
	consecutiveFailures int
	openedAt            time.Time
	failureThreshold    int
	resetTimeout        time.Duration
}

// NewCircuitBreaker builds a breaker with the given threshold and reset
// timeout.
func NewCircuitBreaker(failureThreshold, resetTimeoutSeconds int) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if resetTimeoutSeconds <= 0 {
		resetTimeoutSeconds = 60
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     time.Duration(resetTimeoutSeconds) * time.Second,
	}
}

// Allow reports whether a call may proceed right now. When the breaker is
// open and the reset timeout has elapsed, it transitions to half-open and
// allows exactly one probe call; subsequent calls are rejected until that
// probe reports its outcome via RecordSuccess/RecordFailure.
func (b *CircuitBreaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if now.Sub(b.openedAt) >= b.resetTimeout {
			b.state = stateHalfOpen
			return true
		}
		return false
	case stateHalfOpen:
		return false
	default:
		return true
	}
}

// RecordSuccess resets the breaker to closed.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.consecutiveFailures = 0
}

// RecordFailure counts a failure, opening the breaker once the threshold is
// reached (or immediately re-opening it if the failing call was the
// half-open probe).
func (b *CircuitBreaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = now
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.failureThreshold {
		b.state = stateOpen
		b.openedAt = now
	}
}

// IsOpen reports whether the breaker is currently open (including
// half-open, which still fails fast for any call beyond the single probe).
func (b *CircuitBreaker) IsOpen(now time.Time) bool {
	return !b.Allow(now)
}

// Breakers is a keyed set of circuit breakers, one per logical LLM
// operation name.
type Breakers struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	threshold int
	resetSeconds int
}

// NewBreakers builds a Breakers set sharing one threshold/reset config
// across every named operation.
func NewBreakers(failureThreshold, resetTimeoutSeconds int) *Breakers {
	return &Breakers{
		breakers:     make(map[string]*CircuitBreaker),
		threshold:    failureThreshold,
		resetSeconds: resetTimeoutSeconds,
	}
}

// For returns the breaker for a named operation, creating it on first use.
func (b *Breakers) For(operation string) *CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.breakers[operation]
	if !ok {
		cb = NewCircuitBreaker(b.threshold, b.resetSeconds)
		b.breakers[operation] = cb
	}
	return cb
}
