package types

import "time"

// Template is an immutable, named specification for an agent: its model,
// sampling temperature, declared tool surface, and system prompt. Templates
// are loaded from a single YAML file per template (see pkg/registry) and
// never mutated after load.
type Template struct {
	Name        string
	Version     string // informational only; never consulted by Resolve
	Description string
	Author      string
	Model       string
	Temperature float64
	Tools       []string
	Prompt      string
	Metadata    map[string]string

	// Layer records which discovery layer this template was resolved from.
	// Not part of the on-disk schema; set by the registry at load time.
	Layer Layer
}

// Layer identifies one of the registry's discovery layers, in the order
// they are tried by Resolve.
type Layer string

const (
	LayerLocal   Layer = "local"
	LayerPulled  Layer = "pulled"
	LayerBuiltin Layer = "builtin"
)

// TemplateSummary is the lightweight projection of a Template returned by
// List, annotated with the layer it was found in.
type TemplateSummary struct {
	Name        string
	Version     string
	Description string
	Layer       Layer
}

// InstanceState is a worker's position in its lifecycle state machine.
type InstanceState string

const (
	InstanceStarting InstanceState = "starting"
	InstanceReady    InstanceState = "ready"
	InstanceStopping InstanceState = "stopping"
	InstanceStopped  InstanceState = "stopped"
	InstanceCrashed  InstanceState = "crashed"
)

// Instance is one live (or recently live) worker process materialised from
// a Template. The ID is always of the form "<template-name>-<8 hex>" and is
// the only identifier ever used for routing, log filenames, and socket
// paths — the template name alone is never sufficiently unique.
type Instance struct {
	ID           string
	TemplateName string
	CustomName   string // optional user-supplied friendly name, may be empty
	PID          int
	SocketPath   string
	LogPath      string
	State        InstanceState
	SpawnedAt    time.Time
}

// MessageKind distinguishes who produced a conversation log entry.
type MessageKind string

const (
	MessageUser   MessageKind = "user"
	MessageAgent  MessageKind = "agent"
	MessageSystem MessageKind = "system"
)

// Message is one unit of traffic routed between the control plane, a
// client, and agent instances. ID is unique within a single daemon
// generation (process lifetime); it is never persisted across restarts.
type Message struct {
	ID          uint64
	Origin      string // "client" or an instance ID
	Destination string // an instance ID
	Payload     string
	Timestamp   time.Time
	Kind        MessageKind
}

// RegistryRecord is the on-disk, crash-recovery mirror of one Instance.
// It exists only so a control client (or a restarted daemon) can answer
// "what was running" without a live daemon process; it is never consulted
// as the source of truth while the daemon that wrote it is alive.
type RegistryRecord struct {
	InstanceID   string
	PID          int
	SocketPath   string
	TemplateName string
	State        InstanceState
	SpawnedAt    time.Time
}

// DeadLetter is one message whose delivery retries were exhausted.
type DeadLetter struct {
	MessageID   uint64
	Origin      string
	Destination string
	Payload     string
	Timestamp   time.Time
	Attempts    int
	LastError   string
}

// AuditEntry records one instance lifecycle transition or configuration
// mutation, independent of the live RegistryRecord snapshot — logging only,
// never read back by the daemon.
type AuditEntry struct {
	Timestamp  time.Time
	Actor      string // "daemon", an instance ID, or "client"
	Action     string
	InstanceID string
	Detail     string
}

// ConversationEntry is one entry in an instance's bounded conversation log.
type ConversationEntry struct {
	Kind      MessageKind
	Content   string
	Timestamp time.Time
}

// QueueStats summarises one instance's inbound queue for the `queues`
// control operation.
type QueueStats struct {
	InstanceID   string
	Depth        int
	Delivered    uint64
	DeadLettered uint64
}
