// Package metrics defines ago's in-process Prometheus counters and
// gauges (instance states, queue depth, delivery/dead-letter totals,
// control-socket and turn latencies) and a Collector that periodically
// samples the process manager and router into them. No component
// exposes an HTTP /metrics endpoint — SPEC_FULL.md names no metrics
// HTTP surface — so client_golang is used purely as an in-process
// counter/gauge/histogram library.
package metrics
