package graphql

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidResponseShape reports a downstream body that is not a GraphQL
// response (HTML error pages, empty bodies, truncated JSON). Callers treat
// it as an infrastructure-level failure, never as application semantics.
var ErrInvalidResponseShape = errors.New("response body is not a valid GraphQL response")

// Request is the GraphQL request wire shape forwarded to a subgraph.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Response is the GraphQL response wire shape. Data is kept raw so that an
// explicit "data": null (present but null) stays distinguishable from an
// absent data field.
type Response struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []Error         `json:"errors,omitempty"`
}

// Error is a single entry of a GraphQL errors array.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// HasData reports whether the response carried a data field, null included.
func (r *Response) HasData() bool {
	return len(r.Data) > 0
}

// ParseResponse validates and decodes a downstream body. A body is valid if
// it is a JSON object carrying a data field (which may be null) or an errors
// array; anything else maps to ErrInvalidResponseShape.
func ParseResponse(body []byte) (*Response, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponseShape, err)
	}

	_, hasData := probe["data"]
	rawErrors, hasErrors := probe["errors"]

	var respErrors []Error
	if hasErrors {
		if err := json.Unmarshal(rawErrors, &respErrors); err != nil {
			return nil, fmt.Errorf("%w: malformed errors array: %v", ErrInvalidResponseShape, err)
		}
	}

	if !hasData && !hasErrors {
		return nil, fmt.Errorf("%w: neither data nor errors present", ErrInvalidResponseShape)
	}

	resp := &Response{Errors: respErrors}
	if hasData {
		resp.Data = probe["data"]
	}

	return resp, nil
}

// ErrorResponse builds a protocol-shaped response with a null data field and
// a single error entry. Used for fallbacks and gateway-synthesized errors so
// callers always see a valid GraphQL body.
func ErrorResponse(message string, extensions map[string]any) *Response {
	return &Response{
		Data: json.RawMessage("null"),
		Errors: []Error{
			{
				Message:    message,
				Extensions: extensions,
			},
		},
	}
}
