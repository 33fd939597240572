package agent

import (
	"encoding/json"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/corvid-labs/ago/pkg/codec"
	"github.com/corvid-labs/ago/pkg/log"
	"github.com/corvid-labs/ago/pkg/reasoner"
	"github.com/corvid-labs/ago/pkg/tool"
	"github.com/corvid-labs/ago/pkg/types"
)

// Bounded limits from SPEC_FULL.md §4.8, overridable per Config for tests.
const (
	DefaultMaxIterations = 25
	DefaultParseRetries  = 3
	defaultReasonTimeout = 30 * time.Second
	inboundQueueCapacity = 256
)

// Config configures one Worker instance. Template and the RuntimeInfo
// fields are normally produced by LoadConfigDir; Reasoner and Tools are the
// injected C9/C10 boundaries.
type Config struct {
	InstanceID   string
	TemplateName string
	CustomName   string
	Template     types.Template
	DefaultModel string
	AgentNetwork []string

	SocketPath string
	LogPath    string

	Reasoner reasoner.Reasoner
	Tools    tool.Invoker

	MaxIterations int // default DefaultMaxIterations
	MaxScratch    int // default DefaultMaxScratch
	MaxConv       int // default DefaultMaxConversation
	HistoryWindow int // default DefaultHistoryWindow
	ParseRetries  int // default DefaultParseRetries
}

// inboundJob is one unit of work draining into the turn processor: either
// an inter-agent delivery (events == nil, fire-and-forget) or an
// interactive chat turn (events non-nil, the handler relays each one to
// its own connection and waits for the channel to close).
type inboundJob struct {
	origin  string
	message string
	kind    types.MessageKind
	events  chan codec.Event
}

// Worker is the per-instance agent runtime (SPEC_FULL.md §4.8). One
// Worker owns exactly one listening socket and one turn-processor
// goroutine; everything routed to it — inter-agent deliveries and
// interactive chat turns alike — is serialised onto the same inbound
// queue, so turns never overlap.
type Worker struct {
	cfg Config

	reasoner reasoner.Reasoner
	tools    tool.Invoker

	scratch *Scratchpad
	conv    *ConversationLog

	maxIterations int
	parseRetries  int
	historyWindow int

	logFile *os.File
	logger  zerolog.Logger

	mu       sync.RWMutex
	state    types.InstanceState
	listener net.Listener

	jobs     chan inboundJob
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Worker from cfg. It does not bind a socket or open the log
// file yet — call Start for that.
func New(cfg Config) *Worker {
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	parseRetries := cfg.ParseRetries
	if parseRetries <= 0 {
		parseRetries = DefaultParseRetries
	}
	historyWindow := cfg.HistoryWindow
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &Worker{
		cfg:           cfg,
		reasoner:      cfg.Reasoner,
		tools:         cfg.Tools,
		scratch:       NewScratchpad(cfg.MaxScratch),
		conv:          NewConversationLog(cfg.MaxConv),
		maxIterations: maxIterations,
		parseRetries:  parseRetries,
		historyWindow: historyWindow,
		logger:        log.WithComponent("agent").With().Str("instance_id", cfg.InstanceID).Logger(),
		state:         types.InstanceStarting,
		jobs:          make(chan inboundJob, inboundQueueCapacity),
		stopCh:        make(chan struct{}),
	}
}

// Start opens the log file, binds the instance socket, and launches the
// accept loop and the turn processor. The worker answers Ping as soon as
// the socket is accepting — SPEC_FULL.md §4.8's Thinking/Observing
// sub-states nest inside the externally-visible Ready state, so a live
// turn never blocks the process manager's health check.
func (w *Worker) Start() error {
	f, err := os.OpenFile(w.cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return types.NewError(types.KindSpawnFailed, w.cfg.LogPath, err)
	}
	w.logFile = f

	os.Remove(w.cfg.SocketPath)
	l, err := net.Listen("unix", w.cfg.SocketPath)
	if err != nil {
		return types.NewError(types.KindSpawnFailed, w.cfg.SocketPath, err)
	}
	w.listener = l

	w.mu.Lock()
	w.state = types.InstanceReady
	w.mu.Unlock()
	w.writeLog(types.MessageSystem, "ready")

	w.wg.Add(2)
	go w.acceptLoop()
	go w.processLoop()

	return nil
}

// Stop flips the worker to Stopping, closes the listener (unblocking
// acceptLoop), and waits for the turn processor to drain whatever job it
// is mid-turn on before declaring itself Stopped. Safe to call more than
// once or concurrently; only the first call does any work.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.state = types.InstanceStopping
		w.mu.Unlock()

		close(w.stopCh)
		if w.listener != nil {
			w.listener.Close()
		}
		w.wg.Wait()

		w.mu.Lock()
		w.state = types.InstanceStopped
		w.mu.Unlock()
		w.writeLog(types.MessageSystem, "stopped")

		if w.logFile != nil {
			w.logFile.Close()
		}
	})
}

func (w *Worker) currentState() types.InstanceState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) acceptLoop() {
	defer w.wg.Done()
	for {
		conn, err := w.listener.Accept()
		if err != nil {
			select {
			case <-w.stopCh:
				return
			default:
				w.logger.Warn().Err(err).Msg("accept failed")
				return
			}
		}
		go w.handleConn(conn)
	}
}

func (w *Worker) handleConn(conn net.Conn) {
	defer conn.Close()

	frame, err := codec.ReadFrame(conn)
	if err != nil || frame.Request == nil {
		return
	}
	req := frame.Request

	switch req.Op {
	case codec.WorkerOpPing:
		w.handlePing(conn)
	case codec.WorkerOpShutdown:
		w.handleShutdown(conn)
	case codec.WorkerOpDeliver:
		w.handleDeliver(conn, req)
	case codec.WorkerOpRecordOutgoing:
		w.handleRecordOutgoing(conn, req)
	case codec.WorkerOpChat:
		w.handleChat(conn, req)
	default:
		_ = codec.WriteResponse(conn, &codec.Response{
			Status:  "error",
			Kind:    string(types.KindDecodeFailure),
			Message: "unknown worker op: " + req.Op,
		})
	}
}

func (w *Worker) handlePing(conn net.Conn) {
	if w.currentState() != types.InstanceReady {
		_ = codec.WriteResponse(conn, &codec.Response{Status: "error", Message: "not ready"})
		return
	}
	_ = codec.WriteResponse(conn, &codec.Response{Status: "ok"})
}

func (w *Worker) handleShutdown(conn net.Conn) {
	_ = codec.WriteResponse(conn, &codec.Response{Status: "ok"})
	go w.Stop()
}

func (w *Worker) handleDeliver(conn net.Conn, req *codec.Request) {
	var msg types.Message
	if err := json.Unmarshal(req.Args, &msg); err != nil {
		_ = codec.WriteResponse(conn, &codec.Response{Status: "error", Kind: string(types.KindDecodeFailure), Message: err.Error()})
		return
	}
	select {
	case w.jobs <- inboundJob{origin: msg.Origin, message: msg.Payload, kind: msg.Kind}:
		_ = codec.WriteResponse(conn, &codec.Response{Status: "ok"})
	default:
		_ = codec.WriteResponse(conn, &codec.Response{Status: "error", Kind: string(types.KindQueueFull), Message: "inbound queue full"})
	}
}

// handleRecordOutgoing mirrors a message the router sent on this worker's
// own behalf into its conversation log, so the agent's history reflects
// what it itself said (SPEC_FULL.md §4.7 item 4). It never touches the
// turn loop.
func (w *Worker) handleRecordOutgoing(conn net.Conn, req *codec.Request) {
	var msg types.Message
	if err := json.Unmarshal(req.Args, &msg); err != nil {
		_ = codec.WriteResponse(conn, &codec.Response{Status: "error", Kind: string(types.KindDecodeFailure), Message: err.Error()})
		return
	}
	w.conv.Append(types.MessageAgent, msg.Payload)
	_ = codec.WriteResponse(conn, &codec.Response{Status: "ok"})
}

// chatArgs mirrors pkg/control's ChatArgs wire shape — the control server
// forwards its own decoded args verbatim as this op's Args.
type chatArgs struct {
	Agent   string `json:"agent"`
	Message string `json:"message"`
}

func (w *Worker) handleChat(conn net.Conn, req *codec.Request) {
	var args chatArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		_ = codec.WriteResponse(conn, &codec.Response{Status: "error", Kind: string(types.KindDecodeFailure), Message: err.Error()})
		return
	}

	events := make(chan codec.Event, 4)
	job := inboundJob{origin: "client", message: args.Message, kind: types.MessageUser, events: events}

	select {
	case w.jobs <- job:
	default:
		_ = codec.WriteResponse(conn, &codec.Response{Status: "error", Kind: string(types.KindQueueFull), Message: "inbound queue full"})
		return
	}

	var final *codec.Event
	for ev := range events {
		evCopy := ev
		final = &evCopy
		if err := codec.WriteEvent(conn, &evCopy); err != nil {
			return
		}
	}

	if final == nil {
		_ = codec.WriteResponse(conn, &codec.Response{Status: "error", Kind: string(types.KindSocketIO), Message: "turn produced no events"})
		return
	}
	_ = codec.WriteResponse(conn, &codec.Response{Status: "ok", Payload: final.Payload})
}

func (w *Worker) writeLog(kind types.MessageKind, message string) {
	if w.logFile == nil {
		return
	}
	entry := struct {
		Time    time.Time         `json:"time"`
		Kind    types.MessageKind `json:"kind"`
		Message string            `json:"message"`
	}{time.Now(), kind, message}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	w.logFile.Write(append(data, '\n'))
}
