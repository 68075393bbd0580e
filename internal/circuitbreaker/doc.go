// Package circuitbreaker implements the circuit breaker pattern for
// protecting calls to downstream subgraph services.
//
// A circuit breaker prevents cascading failures by blocking calls to a
// failing dependency. It has three states:
//
//   - CLOSED: normal operation, calls pass through
//   - OPEN: dependency failing, calls blocked until the recovery deadline
//   - HALF_OPEN: a limited number of test calls probe for recovery
//
// Tripping requires both a streak of consecutive failures and a minimum
// lifetime call volume, so a cold process cannot open a circuit on a
// statistically insignificant sample. A reset keeps the lifetime call
// counter, so the volume gate only guards the first trip.
//
// Usage:
//
//	registry, _ := circuitbreaker.NewRegistry(defaults, log, nil)
//	cb, _ := registry.Create("subgraph-users", nil)
//	result, err := cb.Execute(func() (any, error) {
//	    return client.Do(ctx, req)
//	}, fallback)
package circuitbreaker
