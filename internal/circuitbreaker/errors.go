package circuitbreaker

import "errors"

var (
	// ErrCircuitOpen is returned when the breaker is open and no fallback
	// was supplied.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyCalls is returned when the half-open test budget is spent
	// and no fallback was supplied.
	ErrTooManyCalls = errors.New("circuit breaker half-open call limit reached")

	// ErrNameRequired is returned when a breaker is created without a
	// dependency name.
	ErrNameRequired = errors.New("circuit breaker name is required")
)
