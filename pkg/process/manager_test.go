package process

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/ago/pkg/health"
	"github.com/corvid-labs/ago/pkg/identity"
	"github.com/corvid-labs/ago/pkg/types"
)

// quietHealth disables the health ticker for tests that don't exercise it
// (the ticker would otherwise dial a socket no test worker ever listens on
// and reap the instance as Crashed mid-test).
func quietHealth() health.Config {
	return health.Config{Interval: time.Hour, Timeout: time.Second, Retries: 2}
}

func newTestManager(t *testing.T, workerBinary string, workerArgs ...string) (*Manager, string) {
	t.Helper()
	baseDir := t.TempDir()
	bin := workerBinary
	if len(workerArgs) > 0 {
		// Manager.Spawn passes only its own flags, so wrap the command
		// line in a script that ignores them.
		quoted := make([]string, 0, len(workerArgs)+1)
		for _, a := range append([]string{workerBinary}, workerArgs...) {
			quoted = append(quoted, "'"+strings.ReplaceAll(a, "'", `'\''`)+"'")
		}
		bin = filepath.Join(baseDir, "fake-worker.sh")
		require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nexec "+strings.Join(quoted, " ")+"\n"), 0o755))
	}
	m := NewManager(Config{
		BaseDir:      baseDir,
		WorkerBinary: bin,
		HealthConfig: quietHealth(),
		GraceTimeout: 30 * time.Millisecond,
		KillTimeout:  30 * time.Millisecond,
		Index:        identity.NewIndex(),
	})
	return m, baseDir
}

type fakeAuditor struct {
	entries []types.AuditEntry
}

func (f *fakeAuditor) AppendAudit(e types.AuditEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

type fakeRegistry struct {
	records map[string]types.RegistryRecord
}

func newFakeRegistry() *fakeRegistry { return &fakeRegistry{records: map[string]types.RegistryRecord{}} }

func (f *fakeRegistry) Upsert(r types.RegistryRecord) error {
	f.records[r.InstanceID] = r
	return nil
}

func (f *fakeRegistry) Remove(id string) error {
	delete(f.records, id)
	return nil
}

func (f *fakeRegistry) Load() ([]types.RegistryRecord, error) {
	out := make([]types.RegistryRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

func TestSpawnStartsProcessAndTracksInstance(t *testing.T) {
	m, _ := newTestManager(t, "/bin/sh", "-c", "sleep 5")

	inst, err := m.Spawn(SpawnRequest{TemplateName: "researcher"})
	require.NoError(t, err)
	defer m.StopAll()

	assert.Regexp(t, `^researcher-[0-9a-f]{8}$`, inst.ID)
	assert.Equal(t, types.InstanceStarting, inst.State)
	assert.NotZero(t, inst.PID)

	got, ok := m.Inspect(inst.ID)
	require.True(t, ok)
	assert.Equal(t, inst.ID, got.ID)

	sock, ok := m.SocketPath(inst.ID)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(m.baseDir, "processes", inst.ID+".sock"), sock)
}

func TestSpawnRecordsRegistryAndAudit(t *testing.T) {
	baseDir := t.TempDir()
	registry := newFakeRegistry()
	auditor := &fakeAuditor{}
	idx := identity.NewIndex()

	m := NewManager(Config{
		BaseDir:      baseDir,
		WorkerBinary: "/bin/sh",
		HealthConfig: quietHealth(),
		GraceTimeout: 30 * time.Millisecond,
		KillTimeout:  30 * time.Millisecond,
		Index:        idx,
		Registry:     registry,
		Audit:        auditor,
	})

	inst, err := m.Spawn(SpawnRequest{TemplateName: "researcher", ConfigDir: baseDir})
	require.NoError(t, err)
	defer m.StopAll()

	rec, ok := registry.records[inst.ID]
	require.True(t, ok)
	assert.Equal(t, inst.PID, rec.PID)

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, "spawn", auditor.entries[0].Action)
	assert.Equal(t, inst.ID, auditor.entries[0].InstanceID)
}

func TestStopSendsGraceThenKillsProcess(t *testing.T) {
	m, _ := newTestManager(t, "/bin/sh", "-c", "trap '' TERM; sleep 5")

	inst, err := m.Spawn(SpawnRequest{TemplateName: "researcher"})
	require.NoError(t, err)

	err = m.Stop(inst.ID)
	require.NoError(t, err)

	_, ok := m.Inspect(inst.ID)
	assert.False(t, ok, "instance should be reaped after Stop")
}

func TestStopOnUnknownInstanceReturnsNotRunning(t *testing.T) {
	m, _ := newTestManager(t, "/bin/sh")

	err := m.Stop("does-not-exist")
	require.Error(t, err)
	agoErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.KindNotRunning, agoErr.Kind)
}

func TestWaitExitReapsAsCrashedWhenProcessDiesOnItsOwn(t *testing.T) {
	m, _ := newTestManager(t, "/bin/sh", "-c", "exit 1")

	inst, err := m.Spawn(SpawnRequest{TemplateName: "researcher"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := m.Inspect(inst.ID)
		return !ok
	}, time.Second, 5*time.Millisecond, "instance should be reaped once the process exits")
}

func TestStopAllStopsEveryInstance(t *testing.T) {
	m, _ := newTestManager(t, "/bin/sh", "-c", "sleep 5")

	_, err := m.Spawn(SpawnRequest{TemplateName: "researcher"})
	require.NoError(t, err)
	_, err = m.Spawn(SpawnRequest{TemplateName: "helper"})
	require.NoError(t, err)

	m.StopAll()
	assert.Empty(t, m.ListInstances())
}
