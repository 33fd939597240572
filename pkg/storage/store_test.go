package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/ago/pkg/types"
)

func TestRegistryUpsertLoadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	r, err := NewRegistry(path)
	require.NoError(t, err)

	records, err := r.Load()
	require.NoError(t, err)
	assert.Empty(t, records)

	rec := types.RegistryRecord{
		InstanceID:   "researcher-aaaaaaaa",
		PID:          1234,
		SocketPath:   "/tmp/researcher-aaaaaaaa.sock",
		TemplateName: "researcher",
		State:        types.InstanceReady,
		SpawnedAt:    time.Now(),
	}
	require.NoError(t, r.Upsert(rec))

	records, err = r.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.InstanceID, records[0].InstanceID)

	rec.State = types.InstanceCrashed
	require.NoError(t, r.Upsert(rec))
	records, err = r.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.InstanceCrashed, records[0].State)

	require.NoError(t, r.Remove(rec.InstanceID))
	records, err = r.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAppendLogDeadLettersAndAudit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dead-letters.log")
	a, err := NewAppendLog(path)
	require.NoError(t, err)

	require.NoError(t, a.AppendDeadLetter(types.DeadLetter{MessageID: 1, Origin: "client", Destination: "ghost-00000000", Payload: "hi"}))
	require.NoError(t, a.AppendDeadLetter(types.DeadLetter{MessageID: 2, Origin: "client", Destination: "ghost-00000000", Payload: "again"}))

	letters, err := a.ReadDeadLetters()
	require.NoError(t, err)
	require.Len(t, letters, 2)
	assert.Equal(t, "hi", letters[0].Payload)
	assert.Equal(t, "again", letters[1].Payload)
}

func TestAppendLogAudit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	a, err := NewAppendLog(path)
	require.NoError(t, err)

	require.NoError(t, a.AppendAudit(types.AuditEntry{Actor: "daemon", Action: "spawn", InstanceID: "researcher-aaaaaaaa"}))

	entries, err := a.ReadAudit()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "spawn", entries[0].Action)
}

func TestReadDeadLettersMissingFileIsEmptyNotError(t *testing.T) {
	a := &AppendLog{path: filepath.Join(t.TempDir(), "nope.log")}
	letters, err := a.ReadDeadLetters()
	require.NoError(t, err)
	assert.Empty(t, letters)
}
