// Package router implements the daemon's internal event broker (used for
// config-invalidation fan-out, see pkg/config) and the inter-agent message
// router (SPEC_FULL.md §4.7): a bounded inbound queue per instance, a
// background retrying delivery task, and a dead-letter sink for deliveries
// that exhaust their retries.
package router
