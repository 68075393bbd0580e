package metrics

import (
	"sort"
	"sync"
	"time"
)

// Metrics is the thread-safe store behind the collector. It tracks call
// outcomes, fallback volume, breaker state and response-time percentiles
// per subgraph service.
type Metrics struct {
	mutex         sync.RWMutex
	calls         map[string]int64
	successes     map[string]int64
	failures      map[string]int64
	rejections    map[string]int64
	fallbacks     map[string]int64
	responseTimes map[string][]time.Duration
	breakerStates map[string]string
	healthStatus  map[string]bool
	startTime     time.Time
}

// Snapshot is the JSON-serialisable view of the collected metrics.
type Snapshot struct {
	TotalCalls int64                     `json:"total_calls"`
	Uptime     time.Duration             `json:"uptime"`
	Services   map[string]ServiceMetrics `json:"services"`
}

// ServiceMetrics aggregates one subgraph's resilience counters.
type ServiceMetrics struct {
	Calls        int64         `json:"calls"`
	Successes    int64         `json:"successes"`
	Failures     int64         `json:"failures"`
	Rejections   int64         `json:"rejections"`
	Fallbacks    int64         `json:"fallbacks"`
	BreakerState string        `json:"breaker_state"`
	Healthy      bool          `json:"healthy"`
	AvgResponse  time.Duration `json:"avg_response"`
	P50Response  time.Duration `json:"p50_response"`
	P95Response  time.Duration `json:"p95_response"`
	P99Response  time.Duration `json:"p99_response"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		calls:         make(map[string]int64),
		successes:     make(map[string]int64),
		failures:      make(map[string]int64),
		rejections:    make(map[string]int64),
		fallbacks:     make(map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		breakerStates: make(map[string]string),
		healthStatus:  make(map[string]bool),
		startTime:     time.Now(),
	}
}

func (m *Metrics) RecordSuccess(service string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls[service]++
	m.successes[service]++
	m.recordDuration(service, duration)
}

func (m *Metrics) RecordFailure(service string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls[service]++
	m.failures[service]++
	m.recordDuration(service, duration)
}

func (m *Metrics) RecordRejection(service string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rejections[service]++
}

func (m *Metrics) RecordFallback(service string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.fallbacks[service]++
}

func (m *Metrics) UpdateBreakerState(service, state string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.breakerStates[service] = state
}

func (m *Metrics) UpdateHealthStatus(service string, healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.healthStatus[service] = healthy
}

// recordDuration keeps a bounded window of samples per service. Caller must
// hold the mutex.
func (m *Metrics) recordDuration(service string, duration time.Duration) {
	m.responseTimes[service] = append(m.responseTimes[service], duration)
	if len(m.responseTimes[service]) > 1000 {
		m.responseTimes[service] = m.responseTimes[service][1:]
	}
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:   time.Since(m.startTime),
		Services: make(map[string]ServiceMetrics),
	}

	names := make(map[string]struct{})
	for name := range m.calls {
		names[name] = struct{}{}
	}
	for name := range m.rejections {
		names[name] = struct{}{}
	}
	for name := range m.fallbacks {
		names[name] = struct{}{}
	}
	for name := range m.breakerStates {
		names[name] = struct{}{}
	}
	for name := range m.healthStatus {
		names[name] = struct{}{}
	}

	for name := range names {
		sm := ServiceMetrics{
			Calls:        m.calls[name],
			Successes:    m.successes[name],
			Failures:     m.failures[name],
			Rejections:   m.rejections[name],
			Fallbacks:    m.fallbacks[name],
			BreakerState: m.breakerStates[name],
			Healthy:      m.healthStatus[name],
		}

		if times := m.responseTimes[name]; len(times) > 0 {
			sorted := make([]time.Duration, len(times))
			copy(sorted, times)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

			var total time.Duration
			for _, d := range sorted {
				total += d
			}
			sm.AvgResponse = total / time.Duration(len(sorted))
			sm.P50Response = percentile(sorted, 0.50)
			sm.P95Response = percentile(sorted, 0.95)
			sm.P99Response = percentile(sorted, 0.99)
		}

		snap.Services[name] = sm
		snap.TotalCalls += sm.Calls
	}

	return snap
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
