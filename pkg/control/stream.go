package control

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/corvid-labs/ago/pkg/codec"
	"github.com/corvid-labs/ago/pkg/types"
)

const chatDialTimeout = 5 * time.Second

// handleChat relays a turn to the target instance's worker socket and
// streams whatever the worker emits straight back to the client: any
// Event frames (tool calls, partial output — the exact set is the
// worker's to define) followed by the terminal turn-complete or
// turn-truncated Response, unchanged.
func handleChat(s *Server, conn net.Conn, req *codec.Request) error {
	var args ChatArgs
	if err := decodeArgs(req, &args); err != nil {
		return respond(conn, nil, err)
	}

	id, err := s.identity.ResolveAgent(args.Agent)
	if err != nil {
		return respond(conn, nil, err)
	}

	socketPath, ok := s.manager.SocketPath(id)
	if !ok {
		return respond(conn, nil, types.NewError(types.KindNoSuchAgent, id, nil))
	}

	ctx, cancel := context.WithTimeout(context.Background(), chatDialTimeout)
	defer cancel()
	d := net.Dialer{}
	workerConn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return respond(conn, nil, types.NewError(types.KindSocketIO, id, err))
	}
	defer workerConn.Close()

	payload, err := json.Marshal(args)
	if err != nil {
		return respond(conn, nil, err)
	}
	if err := codec.WriteRequest(workerConn, &codec.Request{Op: codec.WorkerOpChat, Args: payload}); err != nil {
		return respond(conn, nil, types.NewError(types.KindSocketIO, id, err))
	}

	return relayUntilResponse(workerConn, conn)
}

// relayUntilResponse copies Event frames from src to dst until src sends a
// terminal Response, which is also copied to dst before returning.
func relayUntilResponse(src, dst net.Conn) error {
	for {
		frame, err := codec.ReadFrame(src)
		if err != nil {
			return codec.WriteResponse(dst, &codec.Response{
				Status:  "error",
				Kind:    string(types.KindSocketIO),
				Message: err.Error(),
			})
		}

		switch frame.Kind {
		case codec.KindEvent:
			if err := codec.WriteEvent(dst, frame.Event); err != nil {
				return err
			}
		case codec.KindResponse:
			return codec.WriteResponse(dst, frame.Response)
		default:
			return codec.WriteResponse(dst, &codec.Response{
				Status:  "error",
				Kind:    string(types.KindDecodeFailure),
				Message: "worker sent an unexpected frame kind",
			})
		}
	}
}

// handleLogs streams an instance's log file. Without --follow it reads
// the file once, emits one EventLogEntry per line, and terminates.
// With --follow it keeps emitting newly appended lines, driven by
// fsnotify rather than polling, until the client disconnects.
func handleLogs(s *Server, conn net.Conn, req *codec.Request) error {
	var args LogsArgs
	if err := decodeArgs(req, &args); err != nil {
		return respond(conn, nil, err)
	}

	id, err := s.identity.ResolveAgent(args.Agent)
	if err != nil {
		return respond(conn, nil, err)
	}
	inst, ok := s.manager.Inspect(id)
	if !ok {
		return respond(conn, nil, types.NewError(types.KindNoSuchAgent, id, nil))
	}

	f, err := os.Open(inst.LogPath)
	if err != nil {
		return respond(conn, nil, types.NewError(types.KindSocketIO, inst.LogPath, err))
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := writeLogEvent(conn, scanner.Text()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return respond(conn, nil, types.NewError(types.KindSocketIO, inst.LogPath, err))
	}

	if !args.Follow {
		return writeOKResponse(conn, nil)
	}

	return followLogFile(conn, f, inst.LogPath)
}

func writeLogEvent(conn net.Conn, line string) error {
	payload, err := json.Marshal(map[string]string{"line": line})
	if err != nil {
		return err
	}
	return codec.WriteEvent(conn, &codec.Event{EventKind: codec.EventLogEntry, Payload: payload})
}

// followLogFile tails path for appended lines using fsnotify, writing each
// as it arrives, until the client closes the connection (detected by a
// failed write) or a read error occurs.
func followLogFile(conn net.Conn, f *os.File, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return respond(conn, nil, types.NewError(types.KindSocketIO, path, err))
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return respond(conn, nil, types.NewError(types.KindSocketIO, path, err))
	}

	reader := bufio.NewReader(f)
	emitPendingLines := func() error {
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				if werr := writeLogEvent(conn, trimNewline(line)); werr != nil {
					return werr
				}
			}
			if err != nil {
				return nil // caught up; wait for the next fsnotify event
			}
		}
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return writeOKResponse(conn, nil)
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := emitPendingLines(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return writeOKResponse(conn, nil)
			}
			return respond(conn, nil, types.NewError(types.KindSocketIO, path, err))
		}
	}
}

func trimNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '\r' {
		s = s[:len(s)-1]
	}
	return s
}

const queuesPollInterval = time.Second

// handleQueues reports current queue stats; with --follow it keeps
// reporting on an interval until the client disconnects, detected when a
// write to conn fails.
func handleQueues(s *Server, conn net.Conn, req *codec.Request) error {
	var args QueuesArgs
	if err := decodeArgs(req, &args); err != nil {
		return respond(conn, nil, err)
	}

	if !args.Follow {
		return respond(conn, QueuesResult{Queues: s.router.Queues()}, nil)
	}

	ticker := time.NewTicker(queuesPollInterval)
	defer ticker.Stop()

	for range ticker.C {
		payload, err := json.Marshal(QueuesResult{Queues: s.router.Queues()})
		if err != nil {
			return err
		}
		if err := codec.WriteEvent(conn, &codec.Event{EventKind: codec.EventQueueStats, Payload: payload}); err != nil {
			// client disconnected; nothing left to terminate with.
			return err
		}
	}
	return nil
}
