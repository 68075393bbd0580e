package circuitbreaker

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ConfigOverrides carries optional per-dependency deviations from the
// registry defaults. Nil fields keep the default value.
type ConfigOverrides struct {
	FailureThreshold     *int
	RecoveryTimeout      *time.Duration
	MonitoringPeriod     *time.Duration
	HalfOpenMaxCalls     *int
	MinimumCallsRequired *int
}

func (o *ConfigOverrides) apply(cfg Config) Config {
	if o == nil {
		return cfg
	}
	if o.FailureThreshold != nil {
		cfg.FailureThreshold = *o.FailureThreshold
	}
	if o.RecoveryTimeout != nil {
		cfg.RecoveryTimeout = *o.RecoveryTimeout
	}
	if o.MonitoringPeriod != nil {
		cfg.MonitoringPeriod = *o.MonitoringPeriod
	}
	if o.HalfOpenMaxCalls != nil {
		cfg.HalfOpenMaxCalls = *o.HalfOpenMaxCalls
	}
	if o.MinimumCallsRequired != nil {
		cfg.MinimumCallsRequired = *o.MinimumCallsRequired
	}
	return cfg
}

// HealthStatus aggregates breaker health across the registry. Healthy means
// no breaker is open; half-open breakers count as healthy.
type HealthStatus struct {
	Healthy       bool             `json:"healthy"`
	OpenCircuits  []string         `json:"open_circuits"`
	TotalCircuits int              `json:"total_circuits"`
	Stats         map[string]Stats `json:"stats"`
}

// Registry creates and tracks one breaker per named dependency, merging
// process defaults with per-dependency overrides. Breakers are independent
// of each other; the registry lock only guards the map.
type Registry struct {
	mutex         sync.RWMutex
	breakers      map[string]*CircuitBreaker
	defaults      Config
	logger        *slog.Logger
	onStateChange StateChangeFunc
}

// NewRegistry builds a registry with the given default breaker config. The
// defaults are validated up front so misconfiguration fails at startup.
// onStateChange, if non-nil, is attached to every breaker the registry
// creates.
func NewRegistry(defaults Config, log *slog.Logger, onStateChange StateChangeFunc) (*Registry, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	return &Registry{
		breakers:      make(map[string]*CircuitBreaker),
		defaults:      defaults,
		logger:        log.With(slog.String("component", "circuitbreaker")),
		onStateChange: onStateChange,
	}, nil
}

// Create constructs a breaker for name from the defaults merged with
// overrides and stores it, replacing any prior entry under that name.
// Construction errors propagate so an unprotected dependency cannot slip
// through startup silently.
func (r *Registry) Create(name string, overrides *ConfigOverrides) (*CircuitBreaker, error) {
	cfg := overrides.apply(r.defaults)

	cb, err := NewCircuitBreaker(name, cfg, r.logger, r.onStateChange)
	if err != nil {
		return nil, err
	}

	r.mutex.Lock()
	r.breakers[name] = cb
	r.mutex.Unlock()

	r.logger.Info("circuit breaker created",
		slog.String("breaker", name),
		slog.Int("failure_threshold", cfg.FailureThreshold),
		slog.Duration("recovery_timeout", cfg.RecoveryTimeout),
		slog.Duration("monitoring_period", cfg.MonitoringPeriod),
		slog.Int("half_open_max_calls", cfg.HalfOpenMaxCalls),
		slog.Int("minimum_calls_required", cfg.MinimumCallsRequired))

	return cb, nil
}

// Get looks up a breaker by name. Absence is not an error.
func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	cb, ok := r.breakers[name]
	return cb, ok
}

// AllStats snapshots every registered breaker.
func (r *Registry) AllStats() map[string]Stats {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]Stats, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.Stats()
	}
	return stats
}

// HealthStatus reports aggregate health. Only breakers currently in the
// exact OPEN state contribute to OpenCircuits; the list is sorted for
// stable output.
func (r *Registry) HealthStatus() HealthStatus {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	status := HealthStatus{
		OpenCircuits:  []string{},
		TotalCircuits: len(r.breakers),
		Stats:         make(map[string]Stats, len(r.breakers)),
	}

	for name, cb := range r.breakers {
		status.Stats[name] = cb.Stats()
		if cb.State() == StateOpen {
			status.OpenCircuits = append(status.OpenCircuits, name)
		}
	}

	sort.Strings(status.OpenCircuits)
	status.Healthy = len(status.OpenCircuits) == 0
	return status
}
