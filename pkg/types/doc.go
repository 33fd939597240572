/*
Package types defines the core data structures shared across the daemon:
templates, instances, messages, and the on-disk records that mirror them
for crash recovery.

# Core types

Template resolution:
  - Template: a named, versioned agent specification (model, tools, prompt)
  - Layer: which discovery layer a template came from (local/pulled/builtin)
  - TemplateSummary: the lightweight projection returned by List

Instance lifecycle:
  - Instance: one live worker process and its state
  - InstanceState: Starting/Ready/Stopping/Stopped/Crashed

Message routing:
  - Message: one piece of traffic routed between client and instances
  - MessageKind: user/agent/system
  - ConversationEntry: one entry in an instance's bounded conversation log

Crash-recovery mirrors (advisory-locked on disk, never a live source of truth):
  - RegistryRecord, DeadLetter, AuditEntry

None of these types know how to serialize themselves — that's pkg/codec for
wire frames and pkg/storage for the on-disk mirrors.
*/
package types
