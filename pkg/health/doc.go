// Package health tracks instance liveness (SPEC_FULL.md §4.5). The
// process manager runs a single SocketPingChecker per instance on a
// ticker; Status accumulates consecutive successes/failures and flips
// Healthy to false once the configured Retries threshold of consecutive
// misses is reached, at which point the process manager marks the
// instance Crashed and reaps it.
package health
