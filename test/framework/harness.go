package framework

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/corvid-labs/ago/pkg/client"
)

// Daemon is a single ago daemon running as a real subprocess, grounded on
// cluster.go's Manager/Process pairing but scaled down to ago's one-daemon
// topology: no Raft, no leader election, no VM runtime.
type Daemon struct {
	Config *DaemonConfig

	Process    *Client
	proc       *Process
	SocketPath string
}

// Client wraps pkg/client.Client with the process it talks to, so tests
// can assert on logs and exit state alongside API calls.
type Client struct {
	*client.Client
	proc *Process
}

// Logs returns everything the daemon process has written to stdout/stderr.
func (c *Client) Logs() string {
	return c.proc.Logs()
}

// StartDaemon launches "<binary> daemon start --base-dir <dir>" and waits
// for its control socket to accept connections.
func StartDaemon(ctx context.Context, cfg DaemonConfig) (*Daemon, error) {
	if cfg.Binary == "" {
		return nil, fmt.Errorf("DaemonConfig.Binary cannot be empty")
	}
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("DaemonConfig.BaseDir cannot be empty")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base dir: %w", err)
	}

	proc := NewProcess(cfg.Binary)
	level := cfg.LogLevel
	if level == "" {
		level = "info"
	}
	proc.Args = []string{"daemon", "start", "--base-dir", cfg.BaseDir, "--log-level", level}

	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("failed to start daemon: %w", err)
	}

	socketPath := filepath.Join(cfg.BaseDir, "daemon.sock")
	waiter := DefaultWaiter()
	if err := waiter.WaitFor(ctx, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, fmt.Sprintf("control socket %s to appear", socketPath)); err != nil {
		_ = proc.Kill()
		return nil, fmt.Errorf("%w\nlogs:\n%s", err, proc.Logs())
	}

	d := &Daemon{
		Config:     &cfg,
		proc:       proc,
		SocketPath: socketPath,
		Process: &Client{
			Client: client.New(socketPath),
			proc:   proc,
		},
	}
	return d, nil
}

// Stop asks the daemon to shut down over its own control socket, falling
// back to SIGTERM if it never acknowledges the shutdown call.
func (d *Daemon) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.Process.Shutdown(shutdownCtx); err == nil {
		return d.proc.Wait()
	}
	return d.proc.Stop()
}

// Kill force-terminates the daemon, skipping its graceful shutdown path.
func (d *Daemon) Kill() error {
	return d.proc.Kill()
}

// Cleanup stops the daemon and removes its base directory unless
// KeepOnFailure is set and the caller reports a failure.
func (d *Daemon) Cleanup(ctx context.Context, failed bool) {
	_ = d.Stop(ctx)
	if failed && d.Config.KeepOnFailure {
		return
	}
	_ = os.RemoveAll(d.Config.BaseDir)
}
