package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/corvid-labs/ago/pkg/types"
)

// Registry is the advisory-locked, on-disk mirror of live instances
// (SPEC_FULL.md §6, processes/registry.json). The process manager is the
// only writer; Registry itself only serialises concurrent access from
// within one process, since unix.Flock also excludes other processes
// (e.g. a `ps` invoked while the daemon is mid-write, or crash recovery
// tooling) from observing a half-written file.
type Registry struct {
	mu   sync.Mutex
	path string
}

// NewRegistry opens (without yet reading) the registry file at path.
func NewRegistry(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, types.NewError(types.KindBaseDirInaccessible, path, err)
	}
	return &Registry{path: path}, nil
}

// Load reads every record currently mirrored on disk. A missing file is
// not an error — it means no instances have ever been recorded.
func (r *Registry) Load() ([]types.RegistryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *Registry) load() ([]types.RegistryRecord, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.NewError(types.KindRegistryCorrupt, r.path, err)
	}
	defer f.Close()

	if err := flock(f); err != nil {
		return nil, types.NewError(types.KindRegistryCorrupt, r.path, err)
	}
	defer funlock(f)

	var records []types.RegistryRecord
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		return nil, types.NewError(types.KindRegistryCorrupt, r.path, err)
	}
	return records, nil
}

// Upsert writes or replaces the record for rec.InstanceID and rewrites the
// whole document atomically (write-temp, fsync, rename).
func (r *Registry) Upsert(rec types.RegistryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range records {
		if records[i].InstanceID == rec.InstanceID {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}
	return r.write(records)
}

// Remove drops the record for instanceID, if present. Idempotent.
func (r *Registry) Remove(instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	out := records[:0]
	for _, rec := range records {
		if rec.InstanceID != instanceID {
			out = append(out, rec)
		}
	}
	return r.write(out)
}

func (r *Registry) write(records []types.RegistryRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return types.NewError(types.KindRegistryCorrupt, r.path, err)
	}

	tmp := r.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return types.NewError(types.KindRegistryCorrupt, r.path, err)
	}
	if err := flock(f); err != nil {
		f.Close()
		return types.NewError(types.KindRegistryCorrupt, r.path, err)
	}
	_, writeErr := f.Write(data)
	syncErr := f.Sync()
	funlock(f)
	closeErr := f.Close()
	if writeErr != nil {
		return types.NewError(types.KindRegistryCorrupt, r.path, writeErr)
	}
	if syncErr != nil {
		return types.NewError(types.KindRegistryCorrupt, r.path, syncErr)
	}
	if closeErr != nil {
		return types.NewError(types.KindRegistryCorrupt, r.path, closeErr)
	}
	return os.Rename(tmp, r.path)
}

// AppendLog is a flock-guarded, append-only, one-JSON-object-per-line
// sink shared by the dead-letter log and the audit log.
type AppendLog struct {
	mu   sync.Mutex
	path string
}

// NewAppendLog opens (creating the parent directory if needed) an
// append-only log file at path.
func NewAppendLog(path string) (*AppendLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, types.NewError(types.KindBaseDirInaccessible, path, err)
	}
	return &AppendLog{path: path}, nil
}

// Append marshals v to JSON and appends it as one line.
func (a *AppendLog) Append(v interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := flock(f); err != nil {
		return err
	}
	defer funlock(f)

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// AppendDeadLetter satisfies pkg/router.DeadLetterSink.
func (a *AppendLog) AppendDeadLetter(d types.DeadLetter) error {
	return a.Append(d)
}

// AppendAudit records one lifecycle transition or config mutation.
func (a *AppendLog) AppendAudit(e types.AuditEntry) error {
	return a.Append(e)
}

// ReadDeadLetters reads the whole dead-letter log; no control operation
// calls it. Best-effort line-by-line decode: a
// malformed trailing line (e.g. a torn write after a crash) is skipped
// rather than failing the whole read.
func (a *AppendLog) ReadDeadLetters() ([]types.DeadLetter, error) {
	return readLines[types.DeadLetter](a.path)
}

// ReadAudit reads the whole audit log.
func (a *AppendLog) ReadAudit() ([]types.AuditEntry, error) {
	return readLines[types.AuditEntry](a.path)
}

func readLines[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var v T
		if err := json.Unmarshal(scanner.Bytes(), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, scanner.Err()
}

func flock(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("flock %s: %w", f.Name(), err)
	}
	return nil
}

func funlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
