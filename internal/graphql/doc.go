// Package graphql defines the wire types exchanged with subgraphs: requests,
// responses, and protocol errors. It validates that downstream bodies are
// shaped like GraphQL responses and builds the error responses the gateway
// serves when a subgraph cannot be reached.
package graphql
