// Package handler exposes the gateway's HTTP surface: the per-service
// GraphQL forwarding endpoint and the breaker-backed health endpoint.
package handler
