// Package agent implements ago's worker runtime: the process spawned once
// per instance by pkg/process.Manager (SPEC_FULL.md §4.8). Each worker
// opens its own per-instance Unix socket, answers the process manager's
// Ping health check, drains inbound messages from the router (both
// client-issued chat turns and inter-agent deliveries) through a single,
// strictly sequential reason-act loop, and appends every turn to a bounded
// conversation log.
//
// The loop itself — Prepare, Decide, Observe — is the heart of the
// design: Prepare assembles a prompt context from the pending message, the
// scratchpad, and recent history; Decide calls the injected
// pkg/reasoner.Reasoner; Observe either emits a final answer or dispatches
// a tool call through pkg/tool.Invoker and loops. Concurrency is confined
// to *between* workers — inside one worker, turns never overlap.
package agent
