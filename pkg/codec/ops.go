package codec

// Control-socket operations (SPEC_FULL.md §4.6). Closed set, statically
// dispatched — no open-ended op registration.
const (
	OpCreate    = "create"
	OpRun       = "run"
	OpPS        = "ps"
	OpInspect   = "inspect"
	OpChat      = "chat"
	OpSend      = "send"
	OpLogs      = "logs"
	OpStop      = "stop"
	OpQueues    = "queues"
	OpTemplates = "templates"
	OpPull      = "pull"
	OpConfig    = "config"
	OpShutdown  = "shutdown"
)

// Worker-socket operations. A worker's listening socket speaks the same
// frame format as the daemon's control socket, but answers a different,
// smaller op set aimed at the process manager and the router rather than
// an interactive client.
const (
	WorkerOpPing           = "ping"
	WorkerOpShutdown       = "shutdown"
	WorkerOpDeliver        = "deliver"        // inter-agent message arriving from the router
	WorkerOpRecordOutgoing = "record-outgoing" // router asking the sender to mirror its own send
	WorkerOpChat           = "chat"
)

// Event kinds streamed back over a chat, logs --follow, or queues --follow
// connection.
const (
	EventTurnComplete  = "turn-complete"
	EventTurnTruncated = "turn-truncated"
	EventLogEntry      = "log-entry"
	EventReady         = "ready"
	EventQueueStats    = "queue-stats"
)
