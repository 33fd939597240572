package reconciler

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/ago/pkg/types"
)

type fakeTracker map[string]bool

func (f fakeTracker) Inspect(instanceID string) (types.Instance, bool) {
	if f[instanceID] {
		return types.Instance{ID: instanceID}, true
	}
	return types.Instance{}, false
}

type fakeRegistry struct {
	records []types.RegistryRecord
	removed []string
}

func (f *fakeRegistry) Load() ([]types.RegistryRecord, error) { return f.records, nil }

func (f *fakeRegistry) Remove(instanceID string) error {
	f.removed = append(f.removed, instanceID)
	kept := f.records[:0]
	for _, r := range f.records {
		if r.InstanceID != instanceID {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

type fakeAuditor struct {
	entries []types.AuditEntry
}

func (f *fakeAuditor) AppendAudit(e types.AuditEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func TestSweepRemovesOrphanWithDeadPID(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	require.NoError(t, cmd.Run())
	deadPID := cmd.Process.Pid

	registry := &fakeRegistry{records: []types.RegistryRecord{
		{InstanceID: "researcher-aaaaaaaa", PID: deadPID},
	}}
	auditor := &fakeAuditor{}
	r := NewReconciler(fakeTracker{}, registry, auditor)

	require.NoError(t, r.Sweep())

	assert.Empty(t, registry.records)
	assert.Equal(t, []string{"researcher-aaaaaaaa"}, registry.removed)
	require.Len(t, auditor.entries, 1)
	assert.Equal(t, "orphan-removed", auditor.entries[0].Action)
}

func TestSweepLeavesLiveInstanceAlone(t *testing.T) {
	registry := &fakeRegistry{records: []types.RegistryRecord{
		{InstanceID: "researcher-aaaaaaaa", PID: os.Getpid()},
	}}
	tracker := fakeTracker{"researcher-aaaaaaaa": true}
	r := NewReconciler(tracker, registry, nil)

	require.NoError(t, r.Sweep())

	assert.Len(t, registry.records, 1)
	assert.Empty(t, registry.removed)
}

func TestSweepLeavesUntrackedButAliveProcessAlone(t *testing.T) {
	registry := &fakeRegistry{records: []types.RegistryRecord{
		{InstanceID: "researcher-aaaaaaaa", PID: os.Getpid()},
	}}
	r := NewReconciler(fakeTracker{}, registry, nil)

	require.NoError(t, r.Sweep())

	assert.Len(t, registry.records, 1, "a live but untracked process must not be touched")
	assert.Empty(t, registry.removed)
}

func TestStartStop(t *testing.T) {
	registry := &fakeRegistry{}
	r := NewReconciler(fakeTracker{}, registry, nil)
	r.Start()
	r.Stop()
}
