package handler

import (
	"encoding/json"
	"net/http"

	"github.com/KeoTheUndamaged/GraphQLGateway/internal/circuitbreaker"
)

type healthResponse struct {
	Status string `json:"status"`
	circuitbreaker.HealthStatus
}

// NewHealthHandler reports gateway health from the breaker registry:
// 200 "healthy" while no circuit is open, 503 "degraded" otherwise.
func NewHealthHandler(registry *circuitbreaker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := registry.HealthStatus()

		body := healthResponse{Status: "healthy", HealthStatus: status}
		code := http.StatusOK
		if !status.Healthy {
			body.Status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	}
}
