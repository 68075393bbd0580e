// Package subgraph performs protected GraphQL calls to downstream subgraph
// services.
//
// Each subgraph gets an HTTP transport (Client) and a ProtectedClient that
// routes every call through a named circuit breaker. The classifier decides
// what counts against the breaker:
//
//   - connectivity failures (connection refused, DNS, timeouts), 5xx
//     statuses, 408/429/503/504, and unparseable response bodies are
//     infrastructure failures and degrade the breaker
//   - other 4xx responses are legitimate business-logic answers: their
//     protocol-shaped bodies are returned to the caller untouched and the
//     breaker stays healthy
//
// While a breaker is open, callers receive a protocol-shaped
// SERVICE_UNAVAILABLE payload with a retry hint instead of raw transport
// errors.
package subgraph
