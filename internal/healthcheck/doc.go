// Package healthcheck watches aggregate circuit breaker health in the
// background. It does not probe subgraphs itself; the breakers already
// observe real traffic, so the monitor only reports on their state,
// logging degraded/recovered transitions and feeding health events to the
// metrics collector.
package healthcheck
