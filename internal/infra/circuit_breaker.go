package infra

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// CircuitBreaker guards calls to an optional dependency (the Redis event
// queue). After FailureThreshold consecutive failures it opens and fails fast
// for OpenTimeout; then one probe is let through (half-open) and
// SuccessThreshold successes close it again.

type CBState int

const (
	CBClosed CBState = iota
	CBOpen
	CBHalfOpen
)

func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Execute while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	// Now defaults to time.Now; tests inject a controllable clock.
	Now func() time.Time
	// OnStateChange, when set, is called outside the lock after a transition.
	OnStateChange func(name string, from, to CBState)
}

// DefaultCBConfig returns the settings used for event publishing.
func DefaultCBConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

type CircuitBreaker struct {
	mu           sync.Mutex
	cfg          CircuitBreakerConfig
	state        CBState
	failures     int
	successes    int
	lastFailure  time.Time
	pendingEvent *stateChange
}

type stateChange struct{ from, to CBState }

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg, state: CBClosed}
}

// State returns the current state, moving open to half-open once the timeout
// has elapsed.
func (cb *CircuitBreaker) State() CBState {
	cb.mu.Lock()
	s := cb.currentLocked()
	ev := cb.takeEventLocked()
	cb.mu.Unlock()
	cb.notify(ev)
	return s
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if cb.State() == CBOpen {
		return ErrCircuitOpen
	}

	err := fn()

	cb.mu.Lock()
	if err != nil {
		cb.onFailureLocked()
	} else {
		cb.onSuccessLocked()
	}
	ev := cb.takeEventLocked()
	cb.mu.Unlock()
	cb.notify(ev)
	return err
}

func (cb *CircuitBreaker) currentLocked() CBState {
	if cb.state == CBOpen && cb.cfg.Now().Sub(cb.lastFailure) >= cb.cfg.OpenTimeout {
		cb.transitionLocked(CBHalfOpen)
		cb.successes = 0
	}
	return cb.state
}

func (cb *CircuitBreaker) onFailureLocked() {
	cb.failures++
	cb.lastFailure = cb.cfg.Now()
	switch cb.state {
	case CBClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.transitionLocked(CBOpen)
			cb.successes = 0
		}
	case CBHalfOpen:
		cb.transitionLocked(CBOpen)
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) onSuccessLocked() {
	switch cb.state {
	case CBClosed:
		cb.failures = 0
	case CBHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.transitionLocked(CBClosed)
			cb.failures = 0
			cb.successes = 0
		}
	}
}

func (cb *CircuitBreaker) transitionLocked(to CBState) {
	if cb.state == to {
		return
	}
	cb.pendingEvent = &stateChange{from: cb.state, to: to}
	cb.state = to
}

func (cb *CircuitBreaker) takeEventLocked() *stateChange {
	ev := cb.pendingEvent
	cb.pendingEvent = nil
	return ev
}

func (cb *CircuitBreaker) notify(ev *stateChange) {
	if ev == nil {
		return
	}
	log.Warn().Str("breaker", cb.cfg.Name).Stringer("from", ev.from).Stringer("to", ev.to).Msg("circuit breaker state changed")
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, ev.from, ev.to)
	}
}
