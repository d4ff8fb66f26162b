// Package circuitbreaker pauses sends to an SMS provider after a streak of
// provider-side failures. While paused, reminders fail fast and are retried
// by a later run; after a cool-down one probe SMS decides whether sending
// resumes.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State of the breaker.
//
//	Closed -> Open:      MaxFailures provider failures in a row
//	Open -> HalfOpen:    RecoveryTimeout elapsed since the last failure
//	HalfOpen -> Closed:  probe reached a healthy provider
//	HalfOpen -> Open:    probe failed
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
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

// ErrCircuitOpen means the provider is being skipped.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config tunes one provider's breaker.
type Config struct {
	// Name is the provider name, e.g. "africastalking". It labels logs and
	// the breaker state gauge.
	Name string

	MaxFailures     int
	RecoveryTimeout time.Duration

	// OnStateChange runs with the breaker locked and must not call back
	// into it.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns the thresholds used for SMS providers.
func DefaultConfig(name string) Config {
	return Config{
		Name:            name,
		MaxFailures:     5,
		RecoveryTimeout: 30 * time.Second,
	}
}

// CircuitBreaker tracks the health of one SMS provider.
type CircuitBreaker struct {
	mu     sync.Mutex
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	state       State
	streak      int
	lastFailure time.Time
	probing     bool
}

// New creates a closed breaker.
func New(cfg Config, logger *zap.Logger) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}

	return &CircuitBreaker{
		cfg:    cfg,
		logger: logger.With(zap.String("breaker", cfg.Name)),
		now:    time.Now,
		state:  StateClosed,
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.cfg.Name
}

// Allow reports whether the next SMS may be handed to the provider. Once the
// cool-down has passed exactly one probe is let through until its outcome is
// recorded.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) < cb.cfg.RecoveryTimeout {
			return false
		}
		cb.setState(StateHalfOpen)
		cb.probing = true
		cb.logger.Info("sms provider cool-down over, sending probe")
		return true
	case StateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
	return false
}

// RecordSuccess notes that the provider answered normally.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.streak = 0
	if cb.state == StateHalfOpen {
		cb.setState(StateClosed)
		cb.logger.Info("sms provider recovered, resuming sends")
	}
}

// RecordFailure notes a provider-side failure.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.streak++
	cb.lastFailure = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.streak >= cb.cfg.MaxFailures {
			cb.setState(StateOpen)
			cb.logger.Warn("sms provider failing, pausing sends",
				zap.Int("failures", cb.streak),
				zap.Int("threshold", cb.cfg.MaxFailures),
				zap.Duration("retry_after", cb.cfg.RecoveryTimeout),
			)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
		cb.logger.Warn("probe sms failed, provider still unavailable")
	}
}

// Ignore releases the probe slot for an attempt whose outcome says nothing
// about the provider.
func (cb *CircuitBreaker) Ignore() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// setState requires cb.mu.
func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.probing = false

	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
	cb.logger.Debug("breaker state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}
