package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Blocking requests, serving fallbacks
	StateHalfOpen              // Limited recovery testing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config holds the tunables of a single circuit breaker. It is immutable
// once the breaker is constructed.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker while closed.
	FailureThreshold int

	// RecoveryTimeout is how long the breaker stays open before admitting
	// recovery test calls.
	RecoveryTimeout time.Duration

	// MonitoringPeriod is reserved for sliding-window failure accounting
	// and is currently unused.
	MonitoringPeriod time.Duration

	// HalfOpenMaxCalls is the number of test calls admitted during a
	// half-open episode.
	HalfOpenMaxCalls int

	// MinimumCallsRequired gates the first trip: the breaker never opens
	// before it has seen this many calls in total.
	MinimumCallsRequired int
}

// Validate reports whether the configuration can produce a working breaker.
// Invalid configuration is a startup error, never silently corrected.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.FailureThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.RecoveryTimeout, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.MonitoringPeriod, validation.Min(time.Duration(0))),
		validation.Field(&c.HalfOpenMaxCalls, validation.Required, validation.Min(1)),
		validation.Field(&c.MinimumCallsRequired, validation.Min(0)),
	)
}

// Stats is an immutable snapshot of a breaker's counters and timestamps.
type Stats struct {
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalSuccesses      uint64     `json:"total_successes"`
	TotalCalls          uint64     `json:"total_calls"`
	LastFailureTime     *time.Time `json:"last_failure_time,omitempty"`
	NextAttemptTime     *time.Time `json:"next_attempt_time,omitempty"`
}

// Operation is the protected call. It is invoked at most once per Execute.
type Operation func() (any, error)

// Fallback produces a substitute result when the operation is blocked or
// has failed.
type Fallback func() (any, error)

// StateChangeFunc is notified on every state transition. It is invoked with
// the breaker's mutex held and must not call back into the breaker.
type StateChangeFunc func(name string, from, to State)

// CircuitBreaker guards calls to a single downstream dependency. All state
// reads and writes happen under one mutex so the check-then-act sequence
// cannot interleave across concurrent callers; the operation itself runs
// outside the lock.
type CircuitBreaker struct {
	name          string
	cfg           Config
	logger        *slog.Logger
	onStateChange StateChangeFunc

	mutex               sync.Mutex
	state               State
	consecutiveFailures int
	totalSuccesses      uint64
	totalCalls          uint64
	lastFailureTime     time.Time
	nextAttemptTime     time.Time
	halfOpenCalls       int
}

// NewCircuitBreaker creates a closed breaker for the named dependency.
// Construction fails on a missing name or invalid configuration.
func NewCircuitBreaker(name string, cfg Config, log *slog.Logger, onStateChange StateChangeFunc) (*CircuitBreaker, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	return &CircuitBreaker{
		name:          name,
		cfg:           cfg,
		logger:        log.With(slog.String("component", "circuitbreaker"), slog.String("breaker", name)),
		onStateChange: onStateChange,
		state:         StateClosed,
	}, nil
}

// Name returns the dependency name this breaker guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs operation under breaker protection. While the breaker is
// open, or the half-open test budget is spent, the operation is not invoked
// and the fallback (if any) is returned instead. A failing operation also
// falls back when a fallback is supplied; otherwise its error propagates
// unchanged after bookkeeping.
func (cb *CircuitBreaker) Execute(operation Operation, fallback Fallback) (any, error) {
	if err := cb.admit(); err != nil {
		if fallback != nil {
			return fallback()
		}
		return nil, err
	}

	result, err := operation()
	if err != nil {
		cb.recordFailure()
		if fallback != nil {
			return fallback()
		}
		return nil, err
	}

	cb.recordSuccess()
	return result, nil
}

// admit decides whether a call may proceed and claims its slot. Admission,
// counter increments and the open-to-half-open transition happen atomically.
func (cb *CircuitBreaker) admit() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == StateOpen {
		if time.Now().Before(cb.nextAttemptTime) {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.halfOpenCalls = 0
	}

	if cb.state == StateHalfOpen {
		if cb.halfOpenCalls >= cb.cfg.HalfOpenMaxCalls {
			return ErrTooManyCalls
		}
		cb.halfOpenCalls++
	}

	cb.totalCalls++
	return nil
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.totalSuccesses++

	switch cb.state {
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.cfg.HalfOpenMaxCalls {
			cb.reset()
		}
	case StateClosed:
		// One success clears the streak; no success run is required.
		cb.consecutiveFailures = 0
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.consecutiveFailures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateHalfOpen:
		// A single failed test call reopens the circuit with a fresh window.
		cb.trip()
	case StateClosed:
		if cb.shouldTrip() {
			cb.trip()
		}
	}
}

// shouldTrip holds when the failure streak reached the threshold and enough
// lifetime traffic has been seen to make that streak significant.
func (cb *CircuitBreaker) shouldTrip() bool {
	return cb.totalCalls >= uint64(cb.cfg.MinimumCallsRequired) &&
		cb.consecutiveFailures >= cb.cfg.FailureThreshold
}

// trip opens the circuit and recomputes the recovery deadline, overwriting
// any previous one. Caller must hold the mutex.
func (cb *CircuitBreaker) trip() {
	cb.setState(StateOpen)
	cb.nextAttemptTime = time.Now().Add(cb.cfg.RecoveryTimeout)

	cb.logger.Warn("circuit breaker tripped",
		slog.Int("consecutive_failures", cb.consecutiveFailures),
		slog.Time("next_attempt_time", cb.nextAttemptTime))
}

// reset closes the circuit and clears the episode counters. Lifetime call
// volume survives so the minimum-calls gate only guards the first trip.
// Caller must hold the mutex.
func (cb *CircuitBreaker) reset() {
	cb.setState(StateClosed)
	cb.consecutiveFailures = 0
	cb.totalSuccesses = 0
	cb.halfOpenCalls = 0
	cb.lastFailureTime = time.Time{}
	cb.nextAttemptTime = time.Time{}

	cb.logger.Info("circuit breaker reset")
}

func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to

	cb.logger.Info("circuit breaker state changed",
		slog.String("from", from.String()),
		slog.String("to", to.String()))

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}

// State returns the current state without side effects. An elapsed recovery
// window is only acted upon by the next Execute call.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker's counters. Timestamps are nil
// until the breaker has recorded a failure or has tripped.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	stats := Stats{
		State:               cb.state.String(),
		ConsecutiveFailures: cb.consecutiveFailures,
		TotalSuccesses:      cb.totalSuccesses,
		TotalCalls:          cb.totalCalls,
	}

	if !cb.lastFailureTime.IsZero() {
		t := cb.lastFailureTime
		stats.LastFailureTime = &t
	}
	if !cb.nextAttemptTime.IsZero() {
		t := cb.nextAttemptTime
		stats.NextAttemptTime = &t
	}

	return stats
}
