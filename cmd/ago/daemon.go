package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/ago/pkg/client"
	"github.com/corvid-labs/ago/pkg/config"
	"github.com/corvid-labs/ago/pkg/control"
	"github.com/corvid-labs/ago/pkg/health"
	"github.com/corvid-labs/ago/pkg/identity"
	"github.com/corvid-labs/ago/pkg/log"
	"github.com/corvid-labs/ago/pkg/metrics"
	"github.com/corvid-labs/ago/pkg/process"
	"github.com/corvid-labs/ago/pkg/reconciler"
	"github.com/corvid-labs/ago/pkg/registry"
	"github.com/corvid-labs/ago/pkg/router"
	"github.com/corvid-labs/ago/pkg/storage"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run or control the ago daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ago daemon in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := clientContext()
		defer cancel()
		c := client.New(controlSocketPath())
		if _, err := c.Templates(ctx); err != nil {
			fmt.Println("daemon not reachable:", err)
			os.Exit(1)
		}
		fmt.Println("daemon is up")
		return nil
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask a running daemon to shut down gracefully",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := clientContext()
		defer cancel()
		return client.New(controlSocketPath()).Shutdown(ctx)
	},
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
}

// baseDir resolves ago's per-user state directory: --base-dir if given,
// else $AGO_HOME if set, else $HOME/.ago (SPEC_FULL.md §6).
func baseDir() string {
	if dir, _ := rootCmd.PersistentFlags().GetString("base-dir"); dir != "" {
		return dir
	}
	if dir := os.Getenv("AGO_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".ago")
}

func controlSocketPath() string {
	return filepath.Join(baseDir(), "daemon.sock")
}

// clientContext bounds a single CLI-to-daemon call; every thin command in
// this package dials fresh per call, so there is no connection to keep a
// longer-lived context around for.
func clientContext() (context.Context, func()) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// streamContext is for chat/logs --follow/queues --follow: calls that run
// until the server closes the stream or the user interrupts, not until a
// fixed deadline.
func streamContext() (context.Context, func()) {
	return context.WithCancel(context.Background())
}

// runDaemon wires every daemon-side component together and serves the
// control socket until a shutdown is requested or a termination signal
// arrives, following pkg/control/server_test.go's own wiring shape.
func runDaemon() error {
	dir := baseDir()
	for _, sub := range []string{"instances", "processes", "logs", "registry/templates/builtin", "registry/templates/pulled"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return err
		}
	}

	cfg, err := config.Load(filepath.Join(dir, "config.yaml"), filepath.Join(".", ".ago", "config.yaml"))
	if err != nil {
		return err
	}

	idx := identity.NewIndex()
	templates := registry.New(cfg, dir, ".")

	reg, err := storage.NewRegistry(filepath.Join(dir, "processes", "registry.json"))
	if err != nil {
		return err
	}
	audit, err := storage.NewAppendLog(filepath.Join(dir, "logs", "audit.log"))
	if err != nil {
		return err
	}
	deadLetters, err := storage.NewAppendLog(filepath.Join(dir, "logs", "dead-letters.log"))
	if err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return err
	}

	mgr := process.NewManager(process.Config{
		BaseDir:      dir,
		WorkerBinary: exe,
		HealthConfig: health.DefaultConfig(),
		Index:        idx,
		Registry:     reg,
		Audit:        audit,
	})

	rtr := router.New(mgr, deadLetters)

	rec := reconciler.NewReconciler(mgr, reg, audit)
	// One synchronous pass purges records a previous daemon left behind
	// for dead PIDs before the periodic sweep takes over.
	_ = rec.Sweep()
	rec.Start()

	collector := metrics.NewCollector(mgr, rtr)
	collector.Start()

	srv := control.NewServer(control.ServerConfig{
		SocketPath: controlSocketPath(),
		BaseDir:    dir,
		Manager:    mgr,
		Templates:  templates,
		Identity:   idx,
		Router:     rtr,
		Config:     cfg,
		Fetcher:    control.NewHTTPTemplateFetcher(),
		OnShutdown: func() {
			rec.Stop()
			collector.Stop()
			mgr.StopAll()
		},
	})

	logger := log.WithComponent("daemon")
	logger.Info().Str("base_dir", dir).Msg("ago daemon starting")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info().Msg("signal received, shutting down")
		rec.Stop()
		collector.Stop()
		mgr.StopAll()
		srv.Stop()
		return <-errCh
	}
}
