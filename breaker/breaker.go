// Package breaker implements the three-state circuit breaker that guards
// access to the L2 remote store: CLOSED (normal), OPEN (tripped, no L2
// calls), HALF_OPEN (probing for recovery).
//
// The OPEN -> HALF_OPEN edge is evaluated lazily on State(), not by a
// background timer, so the breaker never owns a goroutine.
package breaker

import (
	"sync"
	"time"

	"github.com/dclobato/resilient-cache/cacheerrors"
	"go.uber.org/zap"
)

// State is one of the three circuit states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config parameterizes a Breaker.
type Config struct {
	Enabled   bool
	Threshold int           // consecutive failures to open, >= 1
	Timeout   time.Duration // duration OPEN waits before probing, >= 1s
}

// Validate checks Config against the >=1 constraints on Threshold and
// Timeout. Disabled breakers skip validation since their fields are unused.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Threshold < 1 {
		return cacheerrors.NewConfigurationError("circuit_breaker_threshold", c.Threshold, "must be >= 1")
	}
	if c.Timeout < time.Second {
		return cacheerrors.NewConfigurationError("circuit_breaker_timeout", c.Timeout, "must be >= 1 second")
	}
	return nil
}

// Breaker is a consecutive-failure circuit breaker. All methods are safe
// for concurrent use; a reader racing a writer flipping OPEN->HALF_OPEN may
// observe either state, which is the documented, acceptable race.
type Breaker struct {
	config Config
	log    *zap.Logger

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	lastSuccess time.Time
}

// New constructs a Breaker from Config.
func New(config Config, log *zap.Logger) *Breaker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Breaker{config: config, log: log, state: Closed}
}

// State returns the current state, lazily advancing OPEN to HALF_OPEN once
// Timeout has elapsed since the last recorded failure.
func (b *Breaker) State() State {
	if !b.config.Enabled {
		return Closed
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// stateLocked is State's body for callers already holding b.mu.
func (b *Breaker) stateLocked() State {
	if b.state == Open && b.shouldAttemptResetLocked() {
		b.state = HalfOpen
		b.log.Info("circuit breaker entering half-open state")
	}
	return b.state
}

func (b *Breaker) shouldAttemptResetLocked() bool {
	if b.lastFailure.IsZero() {
		return false
	}
	return time.Since(b.lastFailure) >= b.config.Timeout
}

// IsOpen reports whether the breaker currently blocks L2 calls.
func (b *Breaker) IsOpen() bool { return b.State() == Open }

// RecordSuccess registers a successful L2 call. In HALF_OPEN it closes the
// circuit and resets the failure counter; in CLOSED it merely resets the
// counter.
func (b *Breaker) RecordSuccess() {
	if !b.config.Enabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastSuccess = time.Now()

	switch b.state {
	case HalfOpen:
		b.state = Closed
		b.failures = 0
		b.log.Info("circuit breaker closed after successful probe")
	case Closed:
		b.failures = 0
	}
}

// RecordFailure registers a failed L2 call. A failure in HALF_OPEN reopens
// the circuit immediately regardless of threshold; a failure in CLOSED
// increments the counter and opens the circuit once it reaches Threshold.
func (b *Breaker) RecordFailure() {
	if !b.config.Enabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	switch {
	case b.state == HalfOpen:
		b.state = Open
		b.log.Warn("circuit breaker reopened after failed probe")
	case b.failures >= b.config.Threshold:
		b.state = Open
		b.log.Warn("circuit breaker opened", zap.Int("failures", b.failures), zap.Int("threshold", b.config.Threshold))
	}
}

// Reset unconditionally returns the breaker to CLOSED with zeroed counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.lastFailure = time.Time{}
	b.lastSuccess = time.Time{}
}

// Execute runs fn under breaker protection: if the circuit is OPEN it
// returns *cacheerrors.CircuitBreakerOpen without calling fn; otherwise it
// calls fn and records success or failure based on whether fn returned an
// error.
func (b *Breaker) Execute(backend string, fn func() error) error {
	if b.IsOpen() {
		b.mu.Lock()
		failures := b.failures
		b.mu.Unlock()
		return &cacheerrors.CircuitBreakerOpen{Backend: backend, FailureCount: failures}
	}

	err := fn()
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// Stats is a point-in-time snapshot of the breaker's internal counters.
type Stats struct {
	Enabled         bool
	State           string
	FailureCount    int
	Threshold       int
	TimeoutSeconds  float64
	LastFailureUnix float64
	LastSuccessUnix float64
}

// Stats returns a snapshot suitable for embedding in Coordinator.Stats().
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Stats{
		Enabled:        b.config.Enabled,
		State:          b.stateLocked().String(),
		FailureCount:   b.failures,
		Threshold:      b.config.Threshold,
		TimeoutSeconds: b.config.Timeout.Seconds(),
	}
	if !b.lastFailure.IsZero() {
		s.LastFailureUnix = float64(b.lastFailure.UnixNano()) / 1e9
	}
	if !b.lastSuccess.IsZero() {
		s.LastSuccessUnix = float64(b.lastSuccess.UnixNano()) / 1e9
	}
	return s
}
