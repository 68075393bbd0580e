package subgraph

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/KeoTheUndamaged/GraphQLGateway/internal/graphql"
)

// CallError is the typed failure contract produced by the transport. It
// carries whatever classification evidence the failed exchange yielded: a
// connectivity code, an HTTP status, and any protocol-shaped body recovered
// from an error response. The classifier consumes these fields instead of
// sniffing error shapes.
type CallError struct {
	// Code identifies a low-level connectivity failure, e.g. "ECONNREFUSED".
	// Empty when the exchange reached the HTTP layer.
	Code string

	// StatusCode is the HTTP status of the error response, 0 when none.
	StatusCode int

	// Response holds a protocol-shaped body recovered from the error
	// response, if the downstream sent one.
	Response *graphql.Response

	// Err is the underlying cause.
	Err error
}

func (e *CallError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("subgraph call failed (%s): %v", e.Code, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("subgraph call failed (status %d): %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("subgraph call failed: %v", e.Err)
	}
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// connectivityCode maps low-level transport failures onto the canonical
// connectivity codes the classifier recognises. Returns "" for anything
// that is not a recognised connectivity failure.
func connectivityCode(err error) string {
	var dnsErr *net.DNSError

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return "ECONNREFUSED"
	case errors.Is(err, syscall.ECONNRESET):
		return "ECONNRESET"
	case errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, context.DeadlineExceeded):
		return "ETIMEDOUT"
	case errors.As(err, &dnsErr):
		return "ENOTFOUND"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ETIMEDOUT"
	}

	return ""
}
