package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KeoTheUndamaged/GraphQLGateway/internal/handler"
	"github.com/KeoTheUndamaged/GraphQLGateway/internal/metrics"
)

func setupRouter(
	gatewayHandler *handler.GatewayHandler,
	healthHandler http.HandlerFunc,
	metricsCollector *metrics.Collector,
	promReg *prometheus.Registry,
) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("POST /graphql/{service}", gatewayHandler)
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /stats", metricsCollector.StatsHandler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	return mux
}
