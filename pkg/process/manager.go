package process

import (
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/corvid-labs/ago/pkg/codec"
	"github.com/corvid-labs/ago/pkg/health"
	"github.com/corvid-labs/ago/pkg/identity"
	"github.com/corvid-labs/ago/pkg/log"
	"github.com/corvid-labs/ago/pkg/metrics"
	"github.com/corvid-labs/ago/pkg/types"
)

// Timeout ladder for stop (SPEC_FULL.md §4.5): a graceful Shutdown frame,
// then SIGTERM after TGrace, then SIGKILL after a further TKill.
const (
	TGrace = 5 * time.Second
	TKill  = 3 * time.Second
)

// Registry is the crash-recovery mirror the Manager keeps in sync with
// its in-memory instance map. Satisfied by *pkg/storage.Registry.
type Registry interface {
	Upsert(types.RegistryRecord) error
	Remove(instanceID string) error
	Load() ([]types.RegistryRecord, error)
}

// Auditor records lifecycle transitions. Satisfied by *pkg/storage.AppendLog.
type Auditor interface {
	AppendAudit(types.AuditEntry) error
}

// SpawnRequest describes one worker to launch. ConfigDir is the
// already-materialised per-instance runtime config directory (the
// `create` operation's output); the worker binary reads its template and
// identity from there. InstanceID is optional: when set (the instance was
// already minted and materialised by a prior `create`), Spawn reuses it
// instead of minting a fresh one.
type SpawnRequest struct {
	InstanceID   string
	TemplateName string
	CustomName   string
	ConfigDir    string
}

type childHandle struct {
	instance   types.Instance
	cmd        *exec.Cmd
	checker    *health.SocketPingChecker
	status     *health.Status
	stopHealth chan struct{}
}

// Manager supervises agent worker subprocesses: spawning, health-checking,
// and reaping. It is the daemon's single owner of the live instance set;
// Registry and Auditor are crash-recovery mirrors only, never consulted
// for live state (SPEC_FULL.md §4.3 "global mutable state" note).
type Manager struct {
	baseDir      string
	workerBinary string
	healthCfg    health.Config
	graceTimeout time.Duration
	killTimeout  time.Duration

	idx      *identity.Index
	registry Registry
	auditor  Auditor
	logger   zerolog.Logger

	mu       sync.RWMutex
	handles  map[string]*childHandle
	stopping bool
}

// Config configures a Manager.
type Config struct {
	// BaseDir is the per-user ago directory ($HOME/.ago), under which
	// processes/<id>.sock and logs/<id>.log live.
	BaseDir string
	// WorkerBinary is the executable launched for each instance, invoked
	// as: WorkerBinary --instance-id <id> --socket <path> --log-file
	// <path> --config-dir <dir>.
	WorkerBinary string
	HealthConfig health.Config
	// GraceTimeout and KillTimeout override TGrace/TKill for this Manager;
	// zero means use the package defaults. Tests shrink these to keep Stop
	// fast without changing the production ladder.
	GraceTimeout time.Duration
	KillTimeout  time.Duration
	Index        *identity.Index
	Registry     Registry
	Audit        Auditor
}

// NewManager creates a Manager. It does not load any orphaned state from
// a previous run; pkg/reconciler's Sweep purges such records.
func NewManager(cfg Config) *Manager {
	healthCfg := cfg.HealthConfig
	if healthCfg == (health.Config{}) {
		healthCfg = health.DefaultConfig()
	}
	grace, kill := cfg.GraceTimeout, cfg.KillTimeout
	if grace == 0 {
		grace = TGrace
	}
	if kill == 0 {
		kill = TKill
	}
	return &Manager{
		baseDir:      cfg.BaseDir,
		workerBinary: cfg.WorkerBinary,
		healthCfg:    healthCfg,
		graceTimeout: grace,
		killTimeout:  kill,
		idx:          cfg.Index,
		registry:     cfg.Registry,
		auditor:      cfg.Audit,
		logger:       log.WithComponent("process"),
		handles:      make(map[string]*childHandle),
	}
}

// SocketPath returns the Unix socket path for instanceID, satisfying
// pkg/router.Locator.
func (m *Manager) SocketPath(instanceID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[instanceID]
	if !ok {
		return "", false
	}
	return h.instance.SocketPath, true
}

// ListInstances returns a snapshot of every tracked instance, satisfying
// pkg/metrics.InstanceLister.
func (m *Manager) ListInstances() []types.Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Instance, 0, len(m.handles))
	for _, h := range m.handles {
		out = append(out, h.instance)
	}
	return out
}

// Inspect returns one instance's record.
func (m *Manager) Inspect(instanceID string) (types.Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[instanceID]
	if !ok {
		return types.Instance{}, false
	}
	return h.instance, true
}

// Spawn mints an instance identity, launches the worker binary, and
// begins health-checking it.
func (m *Manager) Spawn(req SpawnRequest) (types.Instance, error) {
	id := req.InstanceID
	if id == "" {
		minted, err := identity.Mint(req.TemplateName, m.idx.Taken())
		if err != nil {
			return types.Instance{}, types.NewError(types.KindSpawnFailed, req.TemplateName, err)
		}
		id = minted
	}

	socketPath := filepath.Join(m.baseDir, "processes", id+".sock")
	logPath := filepath.Join(m.baseDir, "logs", id+".log")
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return types.Instance{}, types.NewError(types.KindSpawnFailed, id, err)
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return types.Instance{}, types.NewError(types.KindSpawnFailed, id, err)
	}
	os.Remove(socketPath) // clear a stale socket file from a prior crash

	cmd := exec.Command(m.workerBinary,
		"--instance-id", id,
		"--socket", socketPath,
		"--log-file", logPath,
		"--config-dir", req.ConfigDir,
	)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return types.Instance{}, types.NewError(types.KindSpawnFailed, id, err)
	}

	inst := types.Instance{
		ID:           id,
		TemplateName: req.TemplateName,
		CustomName:   req.CustomName,
		PID:          cmd.Process.Pid,
		SocketPath:   socketPath,
		LogPath:      logPath,
		State:        types.InstanceStarting,
		SpawnedAt:    time.Now(),
	}

	h := &childHandle{
		instance:   inst,
		cmd:        cmd,
		checker:    health.NewSocketPingChecker(socketPath),
		status:     health.NewStatus(),
		stopHealth: make(chan struct{}),
	}

	m.mu.Lock()
	m.handles[id] = h
	m.mu.Unlock()

	m.idx.Add(id, req.TemplateName, req.CustomName)

	if m.registry != nil {
		_ = m.registry.Upsert(types.RegistryRecord{
			InstanceID: id, PID: inst.PID, SocketPath: socketPath,
			TemplateName: req.TemplateName, State: inst.State, SpawnedAt: inst.SpawnedAt,
		})
	}
	m.recordAudit(id, "spawn", "template="+req.TemplateName)

	go m.waitExit(id, h)
	go m.healthLoop(id, h)

	return inst, nil
}

// waitExit reaps the handle the moment the OS process exits on its own
// (as opposed to via Stop, which reaps after observing the exit it
// itself triggered).
func (m *Manager) waitExit(id string, h *childHandle) {
	err := h.cmd.Wait()

	m.mu.Lock()
	current, ok := m.handles[id]
	stopping := m.stopping
	m.mu.Unlock()
	if !ok || current != h {
		return // already reaped via Stop
	}

	state := types.InstanceStopped
	if err != nil && !stopping {
		state = types.InstanceCrashed
		metrics.InstancesCrashedTotal.Inc()
	}
	m.reap(id, h, state)
}

// healthLoop probes the instance's socket every Interval and reaps it as
// Crashed after Retries consecutive misses.
func (m *Manager) healthLoop(id string, h *childHandle) {
	ticker := time.NewTicker(m.healthCfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopHealth:
			return
		case <-ticker.C:
			if h.status.InStartPeriod(m.healthCfg) {
				continue
			}
			timer := metrics.NewTimer()
			ctx, cancel := context.WithTimeout(context.Background(), m.healthCfg.Timeout)
			result := h.checker.Check(ctx)
			cancel()
			timer.ObserveDuration(metrics.HealthCheckDuration)
			metrics.HealthCheckCyclesTotal.Inc()

			h.status.Update(result, m.healthCfg)
			if h.status.Healthy {
				m.markReady(id, h)
			}
			if !h.status.Healthy {
				m.logger.Warn().Str("instance_id", id).Msg("instance failed health checks, reaping")
				metrics.InstancesCrashedTotal.Inc()
				m.killProcess(h)
				m.reap(id, h, types.InstanceCrashed)
				return
			}
		}
	}
}

// markReady flips a Starting instance to Ready on its first successful
// health check. Idempotent past the first call and a no-op once the
// instance has moved on to Stopping/Stopped/Crashed.
func (m *Manager) markReady(id string, h *childHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.handles[id]; !ok || cur != h {
		return
	}
	if h.instance.State == types.InstanceStarting {
		h.instance.State = types.InstanceReady
	}
}

// Stop gracefully stops one instance: a Shutdown frame, then SIGTERM
// after TGrace, then SIGKILL after a further TKill.
func (m *Manager) Stop(instanceID string) error {
	m.mu.Lock()
	h, ok := m.handles[instanceID]
	m.mu.Unlock()
	if !ok {
		return types.NewError(types.KindNotRunning, instanceID, nil)
	}

	close(h.stopHealth)

	h.instance.State = types.InstanceStopping
	m.sendShutdown(h)

	exited := make(chan error, 1)
	go func() { exited <- h.cmd.Wait() }()

	select {
	case <-exited:
	case <-time.After(m.graceTimeout):
		_ = h.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-exited:
		case <-time.After(m.killTimeout):
			_ = h.cmd.Process.Kill()
			<-exited
		}
	}

	m.reap(instanceID, h, types.InstanceStopped)
	return nil
}

// StopAll stops every tracked instance.
func (m *Manager) StopAll() {
	m.mu.Lock()
	m.stopping = true
	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_ = m.Stop(id)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Manager) killProcess(h *childHandle) {
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
}

func (m *Manager) sendShutdown(h *childHandle) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d := &net.Dialer{}
	conn, err := d.DialContext(ctx, "unix", h.instance.SocketPath)
	if err != nil {
		return
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	_ = codec.WriteRequest(conn, &codec.Request{Op: codec.WorkerOpShutdown})
	_, _ = codec.ReadFrame(conn)
}

// reap removes the instance from the in-memory map, identity index, and
// registry mirror, removes its stale socket file, and records an audit
// entry. Safe to call at most once per instance — callers only reach it
// from waitExit, healthLoop, or Stop, which all hold a live handle
// reference and clear it from m.handles under lock before returning.
func (m *Manager) reap(id string, h *childHandle, state types.InstanceState) {
	m.mu.Lock()
	if cur, ok := m.handles[id]; !ok || cur != h {
		m.mu.Unlock()
		return
	}
	delete(m.handles, id)
	m.mu.Unlock()

	h.instance.State = state
	m.idx.Remove(id)
	os.Remove(h.instance.SocketPath)

	if m.registry != nil {
		_ = m.registry.Remove(id)
	}
	m.recordAudit(id, "reap", "state="+string(state))
}

// recordAudit appends a lifecycle entry to the audit mirror. A nil auditor
// (e.g. in tests that don't care about the audit trail) is a silent no-op.
func (m *Manager) recordAudit(instanceID, action, detail string) {
	if m.auditor == nil {
		return
	}
	_ = m.auditor.AppendAudit(types.AuditEntry{
		Timestamp:  time.Now(),
		Actor:      "daemon",
		Action:     action,
		InstanceID: instanceID,
		Detail:     detail,
	})
}
