package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KeoTheUndamaged/GraphQLGateway/internal/graphql"
)

// maxResponseBytes bounds how much of a downstream body is read. GraphQL
// responses beyond this are treated as malformed.
const maxResponseBytes = 4 << 20

// Transport performs the actual network exchange for one subgraph. A failed
// exchange returns a *CallError carrying the classification evidence.
type Transport interface {
	Do(ctx context.Context, req graphql.Request) (*graphql.Response, error)
}

// Client is the HTTP transport for a single subgraph endpoint.
type Client struct {
	name       string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates the endpoint and builds a transport with the given
// request timeout.
func NewClient(name, endpoint string, timeout time.Duration, log *slog.Logger) (*Client, error) {
	if err := validateEndpoint(endpoint); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.With(slog.String("component", "subgraph"), slog.String("subgraph", name)),
	}, nil
}

// Do posts the GraphQL request and decodes the response. Connectivity
// failures, error statuses and unparseable bodies all surface as
// *CallError; a 2xx protocol-shaped body is returned as-is, even when it
// carries a GraphQL errors array.
func (c *Client) Do(ctx context.Context, req graphql.Request) (*graphql.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &CallError{Err: fmt.Errorf("encoding request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &CallError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &CallError{Code: connectivityCode(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &CallError{Code: connectivityCode(err), Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		callErr := &CallError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("subgraph %s responded with status %d", c.name, resp.StatusCode),
		}
		// Keep a protocol-shaped error body: business-logic responses
		// travel inside it.
		if parsed, parseErr := graphql.ParseResponse(body); parseErr == nil {
			callErr.Response = parsed
		}
		return nil, callErr
	}

	parsed, err := graphql.ParseResponse(body)
	if err != nil {
		c.logger.Debug("invalid response shape", slog.String("error", err.Error()))
		return nil, &CallError{Err: err}
	}

	return parsed, nil
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return validation.NewError("validation_empty_url", "subgraph URL cannot be empty")
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsed.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
