package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type EventType string

const (
	EventCallSucceeded  EventType = "call_succeeded"
	EventCallFailed     EventType = "call_failed"
	EventCallRejected   EventType = "call_rejected"
	EventFallbackServed EventType = "fallback_served"
	EventStateChanged   EventType = "state_changed"
	EventHealthChanged  EventType = "health_changed"
)

// Event is one resilience observation emitted from the call path or the
// breaker state-change hook.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Service   string
	Duration  time.Duration
	State     string
	Healthy   bool
}

// Collector consumes events on a buffered channel so the request path never
// blocks on metrics bookkeeping. It feeds both the JSON snapshot store and
// the Prometheus instruments.
type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger

	promCalls    *prometheus.CounterVec
	promState    *prometheus.GaugeVec
	promDuration *prometheus.HistogramVec
}

// NewCollector builds a collector with the given channel capacity and
// registers its Prometheus instruments on reg.
func NewCollector(bufferSize int, logger *slog.Logger, reg prometheus.Registerer) *Collector {
	c := &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,

		promCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_subgraph_calls_total",
			Help: "Subgraph calls by service and outcome.",
		}, []string{"service", "outcome"}),
		promState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_circuit_breaker_state",
			Help: "Circuit breaker state per service (0=closed, 1=half-open, 2=open).",
		}, []string{"service"}),
		promDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_subgraph_call_duration_seconds",
			Help:    "Subgraph call duration by service.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
	}

	reg.MustRegister(c.promCalls, c.promState, c.promDuration)
	return c
}

// Emit submits an event without blocking; events are dropped when the
// buffer is full rather than stalling the request path.
func (c *Collector) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("metrics collector started")
	defer c.logger.Info("metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventCallSucceeded:
		c.metrics.RecordSuccess(event.Service, event.Duration)
		c.promCalls.WithLabelValues(event.Service, "success").Inc()
		c.promDuration.WithLabelValues(event.Service).Observe(event.Duration.Seconds())

	case EventCallFailed:
		c.metrics.RecordFailure(event.Service, event.Duration)
		c.promCalls.WithLabelValues(event.Service, "failure").Inc()
		c.promDuration.WithLabelValues(event.Service).Observe(event.Duration.Seconds())

	case EventCallRejected:
		c.metrics.RecordRejection(event.Service)
		c.promCalls.WithLabelValues(event.Service, "rejected").Inc()

	case EventFallbackServed:
		c.metrics.RecordFallback(event.Service)
		c.promCalls.WithLabelValues(event.Service, "fallback").Inc()

	case EventStateChanged:
		c.metrics.UpdateBreakerState(event.Service, event.State)
		c.promState.WithLabelValues(event.Service).Set(stateValue(event.State))

	case EventHealthChanged:
		c.metrics.UpdateHealthStatus(event.Service, event.Healthy)
	}
}

// drain flushes buffered events on shutdown so late observations are not
// lost.
func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}

func stateValue(state string) float64 {
	switch state {
	case "HALF_OPEN":
		return 1
	case "OPEN":
		return 2
	default:
		return 0
	}
}
