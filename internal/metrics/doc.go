// Package metrics provides real-time resilience metrics for the gateway.
//
// It uses a channel-based event pipeline to asynchronously collect metrics
// about:
//   - Subgraph call outcomes (success, infrastructure failure, breaker
//     rejection, fallback served)
//   - Circuit breaker state transitions
//   - Call durations with percentile calculations (P50, P95, P99)
//   - Per-service health tracking
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the request path: events are sent via a buffered channel with
// non-blocking semantics and dropped under extreme load rather than adding
// latency. Observations feed both a JSON snapshot (served on /stats) and
// Prometheus instruments (served on /metrics).
//
// Example usage:
//
//	collector := metrics.NewCollector(1024, logger, prometheusRegistry)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.Event{
//	    Type:     metrics.EventCallSucceeded,
//	    Service:  "users",
//	    Duration: 150 * time.Millisecond,
//	})
//
// Shutdown drains buffered events so late observations are not lost.
package metrics
