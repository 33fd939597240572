package health

import (
	"context"
	"net"
	"time"

	"github.com/corvid-labs/ago/pkg/codec"
)

// SocketPingChecker probes an instance's Unix socket with a Ping frame
// (SPEC_FULL.md §4.5). A dial failure, write failure, or any response
// other than `status: ok` counts as unhealthy.
type SocketPingChecker struct {
	// SocketPath is the instance's per-process Unix socket.
	SocketPath string

	// Dialer is overridable for tests; defaults to net.Dialer.DialContext.
	Dialer func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewSocketPingChecker creates a checker targeting socketPath.
func NewSocketPingChecker(socketPath string) *SocketPingChecker {
	d := &net.Dialer{}
	return &SocketPingChecker{
		SocketPath: socketPath,
		Dialer:     d.DialContext,
	}
}

// Check dials the socket, sends a Ping request, and waits for a response.
func (s *SocketPingChecker) Check(ctx context.Context) Result {
	start := time.Now()

	conn, err := s.Dialer(ctx, "unix", s.SocketPath)
	if err != nil {
		return Result{Healthy: false, Message: "dial failed: " + err.Error(), CheckedAt: start, Duration: time.Since(start)}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := codec.WriteRequest(conn, &codec.Request{Op: codec.WorkerOpPing}); err != nil {
		return Result{Healthy: false, Message: "write failed: " + err.Error(), CheckedAt: start, Duration: time.Since(start)}
	}

	frame, err := codec.ReadFrame(conn)
	if err != nil {
		return Result{Healthy: false, Message: "read failed: " + err.Error(), CheckedAt: start, Duration: time.Since(start)}
	}
	if frame.Response == nil || frame.Response.Status != "ok" {
		return Result{Healthy: false, Message: "worker did not answer ok to ping", CheckedAt: start, Duration: time.Since(start)}
	}

	return Result{Healthy: true, Message: "pong", CheckedAt: start, Duration: time.Since(start)}
}

// Type reports the check kind.
func (s *SocketPingChecker) Type() CheckType {
	return CheckTypeSocketPing
}
