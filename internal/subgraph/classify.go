package subgraph

import (
	"errors"
	"strings"

	"github.com/KeoTheUndamaged/GraphQLGateway/internal/graphql"
)

// connectivityCodes are the low-level failure codes that always indicate
// systemic unavailability rather than application semantics.
var connectivityCodes = map[string]bool{
	"ECONNREFUSED": true,
	"ENOTFOUND":    true,
	"ETIMEDOUT":    true,
	"ECONNRESET":   true,
}

// retriableStatuses are statuses below 500 that still signal transport or
// backpressure trouble rather than a legitimate application response.
var retriableStatuses = map[int]bool{
	408: true,
	429: true,
	503: true,
	504: true,
}

var connectivityVocabulary = []string{"timeout", "connection", "network", "socket"}

// Policy controls what the classifier does with errors matching none of its
// rules. Defaulting to infrastructure is deliberately conservative: unknown
// error shapes are presumed dangerous rather than presumed benign.
type Policy struct {
	DefaultInfrastructure bool
}

// DefaultPolicy treats unclassifiable errors as infrastructure failures.
func DefaultPolicy() Policy {
	return Policy{DefaultInfrastructure: true}
}

// Classifier decides whether a failed subgraph call indicates systemic
// unavailability (counted against the circuit breaker) or a legitimate
// application error (returned to the caller untouched).
type Classifier struct {
	policy Policy
}

func NewClassifier(policy Policy) Classifier {
	return Classifier{policy: policy}
}

// IsInfrastructureFailure applies the classification rules in priority
// order: connectivity codes, then HTTP status, then message vocabulary,
// then the configured default.
func (c Classifier) IsInfrastructureFailure(err error) bool {
	if err == nil {
		return false
	}

	// An unparseable downstream body is never application semantics.
	if errors.Is(err, graphql.ErrInvalidResponseShape) {
		return true
	}

	var ce *CallError
	if errors.As(err, &ce) {
		if connectivityCodes[ce.Code] {
			return true
		}
		if ce.StatusCode != 0 {
			if ce.StatusCode >= 500 || retriableStatuses[ce.StatusCode] {
				return true
			}
			if ce.StatusCode >= 400 {
				// Other 4xx: a legitimate business-logic response.
				return false
			}
		}
	}

	if connectivityCode(err) != "" {
		return true
	}

	message := strings.ToLower(err.Error())
	for _, word := range connectivityVocabulary {
		if strings.Contains(message, word) {
			return true
		}
	}

	return c.policy.DefaultInfrastructure
}
