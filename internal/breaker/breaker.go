// Package breaker implements the per-tool circuit breaker: a three-state
// machine (closed, open, half_open) with adaptive recovery timeout and
// jittered timers, gating admission to a failing dependency while it cools
// down and probing it cautiously before fully restoring traffic.
package breaker

import (
	"math/rand"
	"sync"
	"time"
)

// State is the circuit breaker's current position in its state machine.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config holds the tunables for one breaker instance, generally one per
// tool descriptor.
type Config struct {
	FailureThreshold  int
	InitialRecovery   time.Duration
	TimeoutMultiplier float64
	MaxRecovery       time.Duration
	SuccessThreshold  int
	MaxHalfOpenCalls  int
	JitterFraction    float64
}

// DefaultConfig returns the spec's baseline breaker tuning.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  5,
		InitialRecovery:   30 * time.Second,
		TimeoutMultiplier: 2.0,
		MaxRecovery:       5 * time.Minute,
		SuccessThreshold:  2,
		MaxHalfOpenCalls:  1,
		JitterFraction:    0.10,
	}
}

// recentError is one entry in the bounded ring of recent failures kept for
// observability (health checks, /metrics, doctor).
type recentError struct {
	at      time.Time
	message string
}

const maxRecentErrors = 10

// Breaker is a single tool's circuit breaker. All mutations happen under mu.
type Breaker struct {
	cfg Config

	mu                  sync.Mutex
	state               State
	failureCount        int
	successCount        int
	consecutiveFailures int
	lastFailureAt       time.Time
	currentRecovery     time.Duration
	halfOpenInFlight    int
	stateChangedAt      time.Time
	stateChangeCount    int
	recentErrors        []recentError
}

// New constructs a Breaker in the closed state.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.InitialRecovery <= 0 {
		cfg.InitialRecovery = DefaultConfig().InitialRecovery
	}
	if cfg.TimeoutMultiplier < 1 {
		cfg.TimeoutMultiplier = DefaultConfig().TimeoutMultiplier
	}
	if cfg.MaxRecovery <= 0 {
		cfg.MaxRecovery = DefaultConfig().MaxRecovery
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultConfig().SuccessThreshold
	}
	if cfg.MaxHalfOpenCalls <= 0 {
		cfg.MaxHalfOpenCalls = DefaultConfig().MaxHalfOpenCalls
	}
	return &Breaker{
		cfg:             cfg,
		state:           StateClosed,
		currentRecovery: cfg.InitialRecovery,
		stateChangedAt:  time.Now(),
	}
}

// Decision is the outcome of an admission check: whether the call may
// proceed, and — when denied — how long the caller should wait before
// retrying.
type Decision struct {
	Allow      bool
	RetryAfter time.Duration
}

// Allow decides whether a call should be admitted, transitioning
// open -> half_open when the jittered recovery window has elapsed.
func (b *Breaker) Allow() Decision {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return Decision{Allow: true}

	case StateOpen:
		elapsed := time.Since(b.lastFailureAt)
		jitter := b.jitterDuration()
		threshold := b.currentRecovery + jitter
		if elapsed >= threshold {
			b.transitionTo(StateHalfOpen)
			b.halfOpenInFlight = 0
			b.successCount = 0
			b.halfOpenInFlight++
			return Decision{Allow: true}
		}
		retryAfter := threshold - elapsed
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Decision{Allow: false, RetryAfter: retryAfter}

	case StateHalfOpen:
		if b.halfOpenInFlight < b.cfg.MaxHalfOpenCalls {
			b.halfOpenInFlight++
			return Decision{Allow: true}
		}
		return Decision{Allow: false, RetryAfter: 5 * time.Second}

	default:
		return Decision{Allow: false, RetryAfter: 5 * time.Second}
	}
}

// jitterDuration returns a random offset within ±JitterFraction of
// currentRecovery, always using the package-level math/rand source (no
// cryptographic requirement — this only smooths thundering-herd retries).
func (b *Breaker) jitterDuration() time.Duration {
	if b.cfg.JitterFraction <= 0 {
		return 0
	}
	max := float64(b.currentRecovery) * b.cfg.JitterFraction
	return time.Duration((rand.Float64()*2 - 1) * max)
}

// RecordSuccess reports a successful call outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.halfOpenInFlight--
		if b.halfOpenInFlight < 0 {
			b.halfOpenInFlight = 0
		}
	}

	b.successCount++
	b.consecutiveFailures = 0

	if b.state == StateHalfOpen && b.successCount >= b.cfg.SuccessThreshold {
		b.transitionTo(StateClosed)
		b.resetCounters()
		b.currentRecovery = b.cfg.InitialRecovery
	}
}

// Cancel reports that a previously admitted call never executed, releasing
// its half-open slot without recording an outcome either way.
func (b *Breaker) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}
}

// RecordFailure reports a failed call outcome with a message retained in
// the bounded recent-errors ring.
func (b *Breaker) RecordFailure(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.halfOpenInFlight--
		if b.halfOpenInFlight < 0 {
			b.halfOpenInFlight = 0
		}
	}

	b.failureCount++
	b.consecutiveFailures++
	b.lastFailureAt = time.Now()
	b.pushRecentError(message)

	switch b.state {
	case StateHalfOpen:
		b.growRecovery()
		b.transitionTo(StateOpen)
	case StateClosed:
		if b.failureCount >= b.cfg.FailureThreshold {
			if b.consecutiveFailures > b.cfg.FailureThreshold {
				b.growRecovery()
			}
			b.transitionTo(StateOpen)
		}
	}
}

// growRecovery applies the adaptive multiplier, capped at MaxRecovery.
func (b *Breaker) growRecovery() {
	next := time.Duration(float64(b.currentRecovery) * b.cfg.TimeoutMultiplier)
	if next > b.cfg.MaxRecovery {
		next = b.cfg.MaxRecovery
	}
	b.currentRecovery = next
}

func (b *Breaker) resetCounters() {
	b.failureCount = 0
	b.successCount = 0
	b.consecutiveFailures = 0
}

func (b *Breaker) transitionTo(s State) {
	if b.state == s {
		return
	}
	b.state = s
	b.stateChangedAt = time.Now()
	b.stateChangeCount++
}

func (b *Breaker) pushRecentError(message string) {
	b.recentErrors = append(b.recentErrors, recentError{at: time.Now(), message: message})
	if len(b.recentErrors) > maxRecentErrors {
		b.recentErrors = b.recentErrors[len(b.recentErrors)-maxRecentErrors:]
	}
}

// Snapshot is a point-in-time, read-only view of breaker state for health
// checks, /metrics, and the doctor CLI.
type Snapshot struct {
	State               State
	FailureCount        int
	SuccessCount        int
	ConsecutiveFailures int
	LastFailureAt       time.Time
	CurrentRecovery     time.Duration
	HalfOpenInFlight    int
	StateChangeCount    int
	RecentErrors        []string
}

// Snapshot returns the current breaker state without mutating it.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	errs := make([]string, len(b.recentErrors))
	for i, e := range b.recentErrors {
		errs[i] = e.at.UTC().Format(time.RFC3339) + " " + e.message
	}

	return Snapshot{
		State:               b.state,
		FailureCount:        b.failureCount,
		SuccessCount:        b.successCount,
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailureAt:       b.lastFailureAt,
		CurrentRecovery:     b.currentRecovery,
		HalfOpenInFlight:    b.halfOpenInFlight,
		StateChangeCount:    b.stateChangeCount,
		RecentErrors:        errs,
	}
}
