package control

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/ago/pkg/codec"
	"github.com/corvid-labs/ago/pkg/config"
	"github.com/corvid-labs/ago/pkg/health"
	"github.com/corvid-labs/ago/pkg/identity"
	"github.com/corvid-labs/ago/pkg/process"
	"github.com/corvid-labs/ago/pkg/registry"
	"github.com/corvid-labs/ago/pkg/router"
	"github.com/corvid-labs/ago/pkg/storage"
	"github.com/corvid-labs/ago/pkg/types"
)

// testHarness wires a real Server against real collaborators rooted in a
// temp directory, with /bin/sh standing in for the worker binary so
// Spawn produces a real, harmless OS process.
type testHarness struct {
	t      *testing.T
	server *Server
	dir    string
}

func newTestHarness(t *testing.T) *testHarness {
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

	// A stand-in worker binary that ignores every flag Manager.Spawn
	// passes it and just sleeps, so spawned instances stay around long
	// enough for the control operations under test to observe them.
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
	srv := NewServer(ServerConfig{
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

	return &testHarness{t: t, server: srv, dir: dir}
}

func (h *testHarness) call(op string, args interface{}) *codec.Response {
	h.t.Helper()

	conn, err := net.Dial("unix", filepath.Join(h.dir, "control.sock"))
	require.NoError(h.t, err)
	defer conn.Close()

	var raw json.RawMessage
	if args != nil {
		raw, err = json.Marshal(args)
		require.NoError(h.t, err)
	}

	require.NoError(h.t, codec.WriteRequest(conn, &codec.Request{Op: op, Args: raw}))

	frame, err := codec.ReadFrame(conn)
	require.NoError(h.t, err)
	require.NotNil(h.t, frame.Response)
	return frame.Response
}

func TestCreateMaterialisesWithoutSpawning(t *testing.T) {
	h := newTestHarness(t)

	resp := h.call(codec.OpCreate, CreateArgs{TemplateName: "researcher"})
	require.Equal(t, "ok", resp.Status)

	var result CreateResult
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	assert.Regexp(t, `^researcher-[0-9a-f]{8}$`, result.InstanceID)
	assert.FileExists(t, filepath.Join(result.ConfigDir, "template.yaml"))
	assert.FileExists(t, filepath.Join(result.ConfigDir, "runtime.yaml"))

	ps := h.call(codec.OpPS, nil)
	require.Equal(t, "ok", ps.Status)
	var psResult PSResult
	require.NoError(t, json.Unmarshal(ps.Payload, &psResult))
	assert.Empty(t, psResult.Instances, "create must not spawn a worker")
}

func TestRunSpawnsAndInspectFindsIt(t *testing.T) {
	h := newTestHarness(t)

	runResp := h.call(codec.OpRun, RunArgs{TemplateName: "researcher"})
	require.Equal(t, "ok", runResp.Status)

	var inst types.Instance
	require.NoError(t, json.Unmarshal(runResp.Payload, &inst))
	assert.Regexp(t, `^researcher-[0-9a-f]{8}$`, inst.ID)

	inspectResp := h.call(codec.OpInspect, InspectArgs{Agent: inst.ID})
	require.Equal(t, "ok", inspectResp.Status)
	var got types.Instance
	require.NoError(t, json.Unmarshal(inspectResp.Payload, &got))
	assert.Equal(t, inst.ID, got.ID)
}

func TestRunWithUnknownTemplateReturnsNoSuchTemplate(t *testing.T) {
	h := newTestHarness(t)

	resp := h.call(codec.OpRun, RunArgs{TemplateName: "does-not-exist"})
	require.Equal(t, "error", resp.Status)
	assert.Equal(t, string(types.KindNoSuchTemplate), resp.Kind)
}

func TestInspectUnknownAgentReturnsNoSuchAgent(t *testing.T) {
	h := newTestHarness(t)

	resp := h.call(codec.OpInspect, InspectArgs{Agent: "nobody"})
	require.Equal(t, "error", resp.Status)
	assert.Equal(t, string(types.KindNoSuchAgent), resp.Kind)
}

func TestStopAllStopsEveryRunningInstance(t *testing.T) {
	h := newTestHarness(t)

	_ = h.call(codec.OpRun, RunArgs{TemplateName: "researcher"})
	_ = h.call(codec.OpRun, RunArgs{TemplateName: "researcher"})

	stopResp := h.call(codec.OpStop, StopArgs{All: true})
	require.Equal(t, "ok", stopResp.Status)

	require.Eventually(t, func() bool {
		ps := h.call(codec.OpPS, nil)
		var result PSResult
		_ = json.Unmarshal(ps.Payload, &result)
		return len(result.Instances) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestTemplatesListsBuiltinLayer(t *testing.T) {
	h := newTestHarness(t)

	resp := h.call(codec.OpTemplates, nil)
	require.Equal(t, "ok", resp.Status)
	var result TemplatesResult
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	require.Len(t, result.Templates, 1)
	assert.Equal(t, "researcher", result.Templates[0].Name)
	assert.Equal(t, types.LayerBuiltin, result.Templates[0].Layer)
}

func TestConfigSetGetShowRoundTrip(t *testing.T) {
	h := newTestHarness(t)

	setResp := h.call(codec.OpConfig, ConfigArgs{Action: "set", Key: "default_model", Value: "gpt-5"})
	require.Equal(t, "ok", setResp.Status)

	getResp := h.call(codec.OpConfig, ConfigArgs{Action: "get", Key: "default_model"})
	require.Equal(t, "ok", getResp.Status)
	var getResult ConfigResult
	require.NoError(t, json.Unmarshal(getResp.Payload, &getResult))
	assert.True(t, getResult.Found)
	assert.Equal(t, "gpt-5", getResult.Value)

	showResp := h.call(codec.OpConfig, ConfigArgs{Action: "show"})
	require.Equal(t, "ok", showResp.Status)
	var showResult ConfigResult
	require.NoError(t, json.Unmarshal(showResp.Payload, &showResult))
	assert.Equal(t, "gpt-5", showResult.Show["default_model"])
}

func TestConfigUnknownActionIsRejected(t *testing.T) {
	h := newTestHarness(t)

	resp := h.call(codec.OpConfig, ConfigArgs{Action: "nonsense"})
	require.Equal(t, "error", resp.Status)
	assert.Equal(t, string(types.KindDecodeFailure), resp.Kind)
}

func TestQueuesReportsNoQueuesInitially(t *testing.T) {
	h := newTestHarness(t)

	resp := h.call(codec.OpQueues, QueuesArgs{})
	require.Equal(t, "ok", resp.Status)
	var result QueuesResult
	require.NoError(t, json.Unmarshal(resp.Payload, &result))
	assert.Empty(t, result.Queues)
}

func TestLogsOnUnknownAgentReturnsNoSuchAgent(t *testing.T) {
	h := newTestHarness(t)

	resp := h.call(codec.OpLogs, LogsArgs{Agent: "nobody"})
	require.Equal(t, "error", resp.Status)
	assert.Equal(t, string(types.KindNoSuchAgent), resp.Kind)
}

func TestShutdownClosesTheControlSocket(t *testing.T) {
	h := newTestHarness(t)

	resp := h.call(codec.OpShutdown, nil)
	require.Equal(t, "ok", resp.Status)

	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		var d net.Dialer
		conn, err := d.DialContext(ctx, "unix", filepath.Join(h.dir, "control.sock"))
		if err == nil {
			conn.Close()
		}
		return err != nil
	}, time.Second, 10*time.Millisecond)
}
