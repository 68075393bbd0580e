// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, subgraph endpoints, circuit breaker defaults and
// per-subgraph overrides, classifier policy, and health check intervals.
package config
