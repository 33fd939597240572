package control

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/corvid-labs/ago/pkg/codec"
	"github.com/corvid-labs/ago/pkg/config"
	"github.com/corvid-labs/ago/pkg/identity"
	"github.com/corvid-labs/ago/pkg/log"
	"github.com/corvid-labs/ago/pkg/metrics"
	"github.com/corvid-labs/ago/pkg/process"
	"github.com/corvid-labs/ago/pkg/registry"
	"github.com/corvid-labs/ago/pkg/router"
	"github.com/corvid-labs/ago/pkg/types"
)

// ServerConfig wires the daemon's components into a control Server.
type ServerConfig struct {
	SocketPath string
	BaseDir    string

	Manager   *process.Manager
	Templates *registry.Registry
	Identity  *identity.Index
	Router    *router.Router
	Config    *config.Config
	Fetcher   TemplateFetcher // nil disables pull

	// OnShutdown is invoked (in its own goroutine) once handleShutdown has
	// written its response, before the control socket itself is closed. A
	// nil OnShutdown means "just close the control socket" — the daemon
	// command supplies one that also tears down the process manager,
	// router, and reconciler.
	OnShutdown func()
}

// Server accepts connections on one Unix socket and dispatches each to the
// handler named by its single Request. See doc.go.
type Server struct {
	socketPath string
	baseDir    string

	manager    *process.Manager
	templates  *registry.Registry
	identity   *identity.Index
	router     *router.Router
	cfg        *config.Config
	fetcher    TemplateFetcher
	onShutdown func()

	logger zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a Server. It does not yet listen — call Serve.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		socketPath: cfg.SocketPath,
		baseDir:    cfg.BaseDir,
		manager:    cfg.Manager,
		templates:  cfg.Templates,
		identity:   cfg.Identity,
		router:     cfg.Router,
		cfg:        cfg.Config,
		fetcher:    cfg.Fetcher,
		onShutdown: cfg.OnShutdown,
		logger:     log.WithComponent("control"),
	}
}

// Serve binds the control socket and accepts connections until Stop is
// called. It blocks; run it in its own goroutine.
func (s *Server) Serve() error {
	os.Remove(s.socketPath) // clear a stale socket from a prior crash

	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return types.NewError(types.KindBindFailed, s.socketPath, err)
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	s.logger.Info().Str("socket", s.socketPath).Msg("control server listening")

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error().Err(err).Msg("accept failed")
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Stop closes the listener and waits for in-flight connections to finish.
func (s *Server) Stop() {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l != nil {
		_ = l.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	frame, err := codec.ReadFrame(conn)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.logger.Warn().Err(err).Msg("failed to read request frame")
		}
		return
	}
	if frame.Request == nil {
		_ = writeErrorResponse(conn, types.NewError(types.KindDecodeFailure, "expected a request frame", nil))
		return
	}

	req := frame.Request
	handler, ok := dispatchTable[req.Op]
	if !ok {
		_ = writeErrorResponse(conn, types.NewError(types.KindDecodeFailure, "unknown op: "+req.Op, nil))
		return
	}

	// Handlers are responsible for writing exactly one terminal Response
	// themselves (optionally preceded by a sequence of Events) — the
	// dispatch loop never writes a second frame on top of one a streaming
	// handler already sent.
	timer := metrics.NewTimer()
	err = handler(s, conn, req)
	timer.ObserveDurationVec(metrics.ControlRequestDuration, req.Op)

	status := "ok"
	if err != nil {
		status = "error"
		s.logger.Warn().Err(err).Str("op", req.Op).Msg("handler reported error")
	}
	metrics.ControlRequestsTotal.WithLabelValues(req.Op, status).Inc()
}

// writeOKResponse writes a terminal success Response with payload marshalled
// to JSON (nil payload omits the field).
func writeOKResponse(w io.Writer, payload interface{}) error {
	resp := &codec.Response{Status: "ok"}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		resp.Payload = body
	}
	return codec.WriteResponse(w, resp)
}

// writeErrorResponse writes a terminal error Response, rendering a typed
// *types.Error into {kind, message} or falling back to a plain message for
// untyped errors.
func writeErrorResponse(w io.Writer, err error) error {
	resp := &codec.Response{Status: "error", Message: err.Error()}
	if kind := types.KindOf(err); kind != "" {
		resp.Kind = string(kind)
	}
	return codec.WriteResponse(w, resp)
}

// respond writes an error Response if err is non-nil, else an ok Response
// carrying payload, and returns err so callers can propagate it unchanged.
func respond(w io.Writer, payload interface{}, err error) error {
	if err != nil {
		_ = writeErrorResponse(w, err)
		return err
	}
	return writeOKResponse(w, payload)
}

// decodeArgs unmarshals req.Args into v, wrapping a parse failure as a
// DecodeFailure.
func decodeArgs(req *codec.Request, v interface{}) error {
	if len(req.Args) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Args, v); err != nil {
		return types.NewError(types.KindDecodeFailure, "decoding args for "+req.Op, err)
	}
	return nil
}
