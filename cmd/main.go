package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/KeoTheUndamaged/GraphQLGateway/config"
	"github.com/KeoTheUndamaged/GraphQLGateway/internal/circuitbreaker"
	"github.com/KeoTheUndamaged/GraphQLGateway/internal/handler"
	"github.com/KeoTheUndamaged/GraphQLGateway/internal/healthcheck"
	"github.com/KeoTheUndamaged/GraphQLGateway/internal/httpserver"
	"github.com/KeoTheUndamaged/GraphQLGateway/internal/metrics"
	"github.com/KeoTheUndamaged/GraphQLGateway/internal/subgraph"
	"github.com/KeoTheUndamaged/GraphQLGateway/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	promReg := prometheus.NewRegistry()
	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log, promReg)
	collector.Start(ctx)

	registry, err := newBreakerRegistry(cfg, log, collector)
	if err != nil {
		log.Error("Failed to create breaker registry", slog.Any("err", err))
		os.Exit(1)
	}

	clients, err := initializeSubgraphs(cfg, registry, log, collector)
	if err != nil {
		log.Error("Failed to initialize subgraphs", slog.Any("err", err))
		os.Exit(1)
	}

	interval, err := cfg.HealthCheckInterval()
	if err != nil {
		log.Error("Failed to parse health check interval", slog.Any("err", err))
		os.Exit(1)
	}
	go healthcheck.Monitor(ctx, registry, interval, log, collector)

	gatewayHandler := handler.NewGatewayHandler(log, clients)
	mux := setupRouter(gatewayHandler, handler.NewHealthHandler(registry), collector, promReg)

	srv, err := httpserver.New(cfg.Server.Address, mux)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func newBreakerRegistry(cfg *config.Config, log *slog.Logger, collector *metrics.Collector) (*circuitbreaker.Registry, error) {
	defaults, err := cfg.BreakerDefaults()
	if err != nil {
		return nil, err
	}

	onStateChange := func(name string, from, to circuitbreaker.State) {
		collector.Emit(metrics.Event{
			Type:    metrics.EventStateChanged,
			Service: strings.TrimPrefix(name, "subgraph-"),
			State:   to.String(),
		})
	}

	return circuitbreaker.NewRegistry(defaults, log, onStateChange)
}

func initializeSubgraphs(
	cfg *config.Config,
	registry *circuitbreaker.Registry,
	log *slog.Logger,
	collector *metrics.Collector,
) (map[string]*subgraph.ProtectedClient, error) {
	classifier := subgraph.NewClassifier(subgraph.Policy{
		DefaultInfrastructure: cfg.Classifier.DefaultInfrastructure,
	})

	clients := make(map[string]*subgraph.ProtectedClient, len(cfg.Subgraphs))

	for _, sub := range cfg.Subgraphs {
		timeout, err := sub.RequestTimeout()
		if err != nil {
			return nil, err
		}

		client, err := subgraph.NewClient(sub.Name, sub.URL, timeout, log)
		if err != nil {
			log.Error("Failed to create subgraph client",
				slog.String("subgraph", sub.Name),
				slog.Any("err", err))
			return nil, err
		}

		overrides, err := sub.BreakerOverrides()
		if err != nil {
			return nil, err
		}

		protected, err := subgraph.NewProtectedClient(sub.Name, client, registry, overrides, classifier, log, collector)
		if err != nil {
			return nil, err
		}

		clients[sub.Name] = protected
	}

	return clients, nil
}
