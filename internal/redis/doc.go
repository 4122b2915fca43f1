// Package redis constructs the shared go-redis client.
//
// Every client gets a MetricsHook (operation counters and latency) and a
// CircuitBreakerHook (fail fast while Redis is down) installed at creation.
package redis
