package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/ago/pkg/config"
	"github.com/corvid-labs/ago/pkg/control"
	"github.com/corvid-labs/ago/pkg/health"
	"github.com/corvid-labs/ago/pkg/identity"
	"github.com/corvid-labs/ago/pkg/process"
	"github.com/corvid-labs/ago/pkg/registry"
	"github.com/corvid-labs/ago/pkg/router"
	"github.com/corvid-labs/ago/pkg/storage"
	"github.com/corvid-labs/ago/pkg/types"
)

// startTestDaemon wires a real control.Server exactly as cmd/ago's daemon
// command would, and returns a Client dialing its socket.
func startTestDaemon(t *testing.T) *Client {
	t.Helper()
	dir := t.TempDir()

	builtinDir := filepath.Join(dir, "registry", "templates", "builtin")
	require.NoError(t, os.MkdirAll(builtinDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(builtinDir, "researcher.yaml"), []byte(
		"name: researcher\nmodel: gpt-test\nprompt: you are a researcher\n",
	), 0o644))

	cfg, err := config.Load(filepath.Join(dir, "config.yaml"), filepath.Join(dir, "local.yaml"))
	require.NoError(t, err)

	idx := identity.NewIndex()
	reg := registry.New(cfg, dir, dir)

	workerScript := filepath.Join(dir, "fake-worker.sh")
	require.NoError(t, os.WriteFile(workerScript, []byte("#!/bin/sh\nsleep 5\n"), 0o755))

	mgr := process.NewManager(process.Config{
		BaseDir:      dir,
		WorkerBinary: workerScript,
		HealthConfig: health.Config{Interval: time.Hour, Timeout: time.Second, Retries: 2},
		GraceTimeout: 30 * time.Millisecond,
		KillTimeout:  30 * time.Millisecond,
		Index:        idx,
	})

	deadLetters, err := storage.NewAppendLog(filepath.Join(dir, "dead-letters.log"))
	require.NoError(t, err)
	rtr := router.New(mgr, deadLetters)

	socketPath := filepath.Join(dir, "control.sock")
	srv := control.NewServer(control.ServerConfig{
		SocketPath: socketPath,
		BaseDir:    dir,
		Manager:    mgr,
		Templates:  reg,
		Identity:   idx,
		Router:     rtr,
		Config:     cfg,
	})
	go srv.Serve()
	t.Cleanup(func() {
		srv.Stop()
		mgr.StopAll()
	})

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	return New(socketPath)
}

func TestClientRunPSInspectStop(t *testing.T) {
	client := startTestDaemon(t)
	ctx := context.Background()

	inst, err := client.Run(ctx, "researcher", "", "")
	require.NoError(t, err)
	assert.Regexp(t, `^researcher-[0-9a-f]{8}$`, inst.ID)

	list, err := client.PS(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, inst.ID, list[0].ID)

	got, err := client.Inspect(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, got.ID)

	require.NoError(t, client.Stop(ctx, inst.ID, false))

	require.Eventually(t, func() bool {
		list, err := client.PS(ctx)
		return err == nil && len(list) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestClientInspectUnknownAgentReturnsTypedError(t *testing.T) {
	client := startTestDaemon(t)

	_, err := client.Inspect(context.Background(), "nobody")
	require.Error(t, err)
	agoErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.KindNoSuchAgent, agoErr.Kind)
}

func TestClientTemplatesAndConfigRoundTrip(t *testing.T) {
	client := startTestDaemon(t)
	ctx := context.Background()

	templates, err := client.Templates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "researcher", templates[0].Name)

	require.NoError(t, client.ConfigSet(ctx, "default_model", "gpt-5"))
	value, found, err := client.ConfigGet(ctx, "default_model")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "gpt-5", value)

	show, err := client.ConfigShow(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gpt-5", show["default_model"])
}

func TestClientQueuesEmptyInitially(t *testing.T) {
	client := startTestDaemon(t)

	queues, err := client.Queues(context.Background())
	require.NoError(t, err)
	assert.Empty(t, queues)
}

func TestClientSendToUnknownAgentReturnsTypedError(t *testing.T) {
	client := startTestDaemon(t)

	_, err := client.Send(context.Background(), "client", "nobody", "hi", types.MessageUser)
	require.Error(t, err)
	agoErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.KindNoSuchAgent, agoErr.Kind)
}

func TestClientShutdown(t *testing.T) {
	client := startTestDaemon(t)

	require.NoError(t, client.Shutdown(context.Background()))

	require.Eventually(t, func() bool {
		_, err := client.PS(context.Background())
		return err != nil
	}, time.Second, 10*time.Millisecond)
}
