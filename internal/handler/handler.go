package handler

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/KeoTheUndamaged/GraphQLGateway/internal/graphql"
	"github.com/KeoTheUndamaged/GraphQLGateway/internal/subgraph"
)

const maxRequestBytes = 1 << 20

// GatewayHandler routes incoming GraphQL requests to the named subgraph's
// protected client. Every response it writes is protocol-shaped, including
// routing and decoding errors.
type GatewayHandler struct {
	logger  *slog.Logger
	clients map[string]*subgraph.ProtectedClient
}

func NewGatewayHandler(logger *slog.Logger, clients map[string]*subgraph.ProtectedClient) *GatewayHandler {
	return &GatewayHandler{
		logger:  logger,
		clients: clients,
	}
}

// ServeHTTP handles "POST /graphql/{service}".
func (g *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	service := r.PathValue("service")
	clientIP := extractClientIP(r)

	w.Header().Set("X-Request-ID", requestID)

	g.logger.Info("received request",
		slog.String("request_id", requestID),
		slog.String("from", clientIP),
		slog.String("service", service),
		slog.String("path", r.URL.Path))

	client, ok := g.clients[service]
	if !ok {
		writeResponse(w, http.StatusNotFound, graphql.ErrorResponse(
			"unknown service: "+service,
			map[string]any{"code": "SERVICE_NOT_FOUND", "serviceName": service},
		))
		return
	}

	var req graphql.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeResponse(w, http.StatusBadRequest, graphql.ErrorResponse(
			"invalid GraphQL request body",
			map[string]any{"code": "BAD_REQUEST"},
		))
		return
	}

	resp, err := client.Invoke(r.Context(), req)
	if err != nil {
		g.logger.Error("subgraph call failed",
			slog.String("request_id", requestID),
			slog.String("service", service),
			slog.String("error", err.Error()))
		writeResponse(w, http.StatusBadGateway, graphql.ErrorResponse(
			service+" request failed",
			map[string]any{"code": "BAD_GATEWAY", "serviceName": service},
		))
		return
	}

	writeResponse(w, http.StatusOK, resp)
}

func writeResponse(w http.ResponseWriter, status int, resp *graphql.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
