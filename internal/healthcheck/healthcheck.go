package healthcheck

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/KeoTheUndamaged/GraphQLGateway/internal/circuitbreaker"
	"github.com/KeoTheUndamaged/GraphQLGateway/internal/metrics"
)

// Monitor periodically snapshots the breaker registry, logs transitions
// between healthy and degraded, and pushes per-service health events to the
// metrics collector. It runs until the context is cancelled.
func Monitor(
	ctx context.Context,
	registry *circuitbreaker.Registry,
	interval time.Duration,
	logger *slog.Logger,
	collector *metrics.Collector,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	wasHealthy := true
	serviceHealth := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			logger.Info("health monitor stopped")
			return

		case <-ticker.C:
			status := registry.HealthStatus()

			if collector != nil {
				for name, stats := range status.Stats {
					healthy := stats.State != circuitbreaker.StateOpen.String()

					// First observation or a transition; steady state
					// stays quiet.
					last, seen := serviceHealth[name]
					if seen && last == healthy {
						continue
					}
					serviceHealth[name] = healthy

					collector.Emit(metrics.Event{
						Type:    metrics.EventHealthChanged,
						Service: strings.TrimPrefix(name, "subgraph-"),
						Healthy: healthy,
					})
				}
			}

			if status.Healthy == wasHealthy {
				continue
			}
			wasHealthy = status.Healthy

			if status.Healthy {
				logger.Info("gateway recovered, all circuits closed",
					slog.Int("total_circuits", status.TotalCircuits))
			} else {
				logger.Warn("gateway degraded, open circuits detected",
					slog.Any("open_circuits", status.OpenCircuits),
					slog.Int("total_circuits", status.TotalCircuits))
			}
		}
	}
}
