package subgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/KeoTheUndamaged/GraphQLGateway/internal/circuitbreaker"
	"github.com/KeoTheUndamaged/GraphQLGateway/internal/graphql"
	"github.com/KeoTheUndamaged/GraphQLGateway/internal/metrics"
)

// breakerPrefix namespaces subgraph breakers inside the shared registry so
// their entries cannot collide with other protected resources.
const breakerPrefix = "subgraph-"

const queryLogLimit = 120

var errTransportRequired = errors.New("subgraph transport is required")

// ProtectedClient wraps one subgraph's transport behind a named circuit
// breaker. Call outcomes are classified so that legitimate application
// error responses never degrade the breaker, while systemic failures do.
type ProtectedClient struct {
	name       string
	transport  Transport
	breaker    *circuitbreaker.CircuitBreaker
	classifier Classifier
	logger     *slog.Logger
	collector  *metrics.Collector
}

// NewProtectedClient registers a breaker for the subgraph under the
// registry's defaults merged with overrides and wires the classifier.
// collector may be nil when metrics are not wanted.
func NewProtectedClient(
	name string,
	transport Transport,
	registry *circuitbreaker.Registry,
	overrides *circuitbreaker.ConfigOverrides,
	classifier Classifier,
	log *slog.Logger,
	collector *metrics.Collector,
) (*ProtectedClient, error) {
	if transport == nil {
		return nil, errTransportRequired
	}
	if log == nil {
		log = slog.Default()
	}

	cb, err := registry.Create(breakerPrefix+name, overrides)
	if err != nil {
		return nil, err
	}

	return &ProtectedClient{
		name:       name,
		transport:  transport,
		breaker:    cb,
		classifier: classifier,
		logger:     log.With(slog.String("component", "subgraph"), slog.String("subgraph", name)),
		collector:  collector,
	}, nil
}

// Breaker exposes the underlying circuit breaker, mainly for health
// reporting and tests.
func (p *ProtectedClient) Breaker() *circuitbreaker.CircuitBreaker {
	return p.breaker
}

// Invoke executes the request through the circuit breaker. The caller
// always receives a protocol-shaped response: real results pass through,
// business-logic error bodies are extracted, and unavailability yields the
// SERVICE_UNAVAILABLE fallback payload.
func (p *ProtectedClient) Invoke(ctx context.Context, req graphql.Request) (*graphql.Response, error) {
	start := time.Now()

	var attempted, infraFailed, fallbackServed bool

	operation := func() (any, error) {
		attempted = true

		resp, err := p.transport.Do(ctx, req)
		if err != nil {
			if p.classifier.IsInfrastructureFailure(err) {
				infraFailed = true
				// Rethrown unchanged so the breaker's failure path runs.
				return nil, err
			}
			return p.businessResult(err), nil
		}

		return resp, nil
	}

	fallback := func() (any, error) {
		fallbackServed = true
		return p.unavailableResponse(req), nil
	}

	result, err := p.breaker.Execute(operation, fallback)
	p.emitOutcome(attempted, infraFailed, fallbackServed, time.Since(start))

	if err != nil {
		return nil, err
	}

	resp, ok := result.(*graphql.Response)
	if !ok {
		return nil, fmt.Errorf("subgraph %s produced an unexpected result type %T", p.name, result)
	}
	return resp, nil
}

// businessResult converts a business-classified error into a normal
// response so upstream layers see the original application answer. When the
// downstream sent a protocol-shaped body it is returned verbatim; otherwise
// a protocol-shaped error is synthesised from the cause.
func (p *ProtectedClient) businessResult(err error) *graphql.Response {
	var ce *CallError
	if errors.As(err, &ce) && ce.Response != nil {
		return ce.Response
	}

	extensions := map[string]any{"code": "DOWNSTREAM_ERROR"}
	if ce != nil && ce.StatusCode != 0 {
		extensions["statusCode"] = ce.StatusCode
	}
	return graphql.ErrorResponse(err.Error(), extensions)
}

// unavailableResponse builds the fallback payload served while the breaker
// blocks calls, and logs it with the current breaker statistics.
func (p *ProtectedClient) unavailableResponse(req graphql.Request) *graphql.Response {
	stats := p.breaker.Stats()

	retryAfter := 0
	if stats.NextAttemptTime != nil {
		if wait := time.Until(*stats.NextAttemptTime); wait > 0 {
			retryAfter = int(math.Ceil(wait.Seconds()))
		}
	}

	p.logger.Warn("serving circuit breaker fallback",
		slog.String("query", truncate(req.Query, queryLogLimit)),
		slog.String("breaker_state", stats.State),
		slog.Int("consecutive_failures", stats.ConsecutiveFailures),
		slog.Uint64("total_calls", stats.TotalCalls),
		slog.Int("retry_after_seconds", retryAfter))

	message := fmt.Sprintf("%s is temporarily unavailable. Please try again later.", p.name)
	return graphql.ErrorResponse(message, map[string]any{
		"code":                  "SERVICE_UNAVAILABLE",
		"circuitBreakerTripped": true,
		"serviceName":           p.name,
		"retryAfter":            retryAfter,
		"timestamp":             time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *ProtectedClient) emitOutcome(attempted, infraFailed, fallbackServed bool, duration time.Duration) {
	if p.collector == nil {
		return
	}

	switch {
	case !attempted:
		p.collector.Emit(metrics.Event{Type: metrics.EventCallRejected, Service: p.name})
	case infraFailed:
		p.collector.Emit(metrics.Event{Type: metrics.EventCallFailed, Service: p.name, Duration: duration})
	default:
		p.collector.Emit(metrics.Event{Type: metrics.EventCallSucceeded, Service: p.name, Duration: duration})
	}

	if fallbackServed {
		p.collector.Emit(metrics.Event{Type: metrics.EventFallbackServed, Service: p.name})
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
