package reconciler

import (
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/corvid-labs/ago/pkg/log"
	"github.com/corvid-labs/ago/pkg/metrics"
	"github.com/corvid-labs/ago/pkg/types"
)

// Interval is how often Reconciler sweeps the registry mirror.
const Interval = 30 * time.Second

// InstanceTracker reports whether the process manager still considers an
// instance live. Satisfied by *pkg/process.Manager.
type InstanceTracker interface {
	Inspect(instanceID string) (types.Instance, bool)
}

// RegistryMirror is the crash-recovery store Reconciler sweeps. Satisfied by
// *pkg/storage.Registry.
type RegistryMirror interface {
	Load() ([]types.RegistryRecord, error)
	Remove(instanceID string) error
}

// Auditor records a removed-orphan entry. Satisfied by *pkg/storage.AppendLog.
type Auditor interface {
	AppendAudit(types.AuditEntry) error
}

// Reconciler periodically removes registry records that no daemon
// generation will ever reap: the process that wrote them is both untracked
// by the live manager and no longer running.
type Reconciler struct {
	tracker  InstanceTracker
	registry RegistryMirror
	auditor  Auditor
	logger   zerolog.Logger

	mu     sync.Mutex
	stopCh chan struct{}
}

// NewReconciler creates a Reconciler. auditor may be nil.
func NewReconciler(tracker InstanceTracker, registry RegistryMirror, auditor Auditor) *Reconciler {
	return &Reconciler{
		tracker:  tracker,
		registry: registry,
		auditor:  auditor,
		logger:   log.WithComponent("reconciler"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the sweep loop.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	r.logger.Info().Msg("reconciler started")

	for {
		select {
		case <-ticker.C:
			if err := r.Sweep(); err != nil {
				r.logger.Error().Err(err).Msg("reconciliation sweep failed")
			}
		case <-r.stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		}
	}
}

// Sweep runs one reconciliation pass: every registry record with no live
// instance and a dead PID is removed and audited. Exported so a daemon can
// run one pass synchronously at startup, before Start begins the ticker.
func (r *Reconciler) Sweep() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	records, err := r.registry.Load()
	if err != nil {
		return err
	}

	for _, rec := range records {
		if _, live := r.tracker.Inspect(rec.InstanceID); live {
			continue
		}
		if processAlive(rec.PID) {
			r.logger.Warn().
				Str("instance_id", rec.InstanceID).
				Int("pid", rec.PID).
				Msg("registry record untracked but process still running, leaving alone")
			continue
		}

		r.logger.Info().
			Str("instance_id", rec.InstanceID).
			Int("pid", rec.PID).
			Msg("removing orphaned registry record")

		if err := r.registry.Remove(rec.InstanceID); err != nil {
			r.logger.Error().Err(err).Str("instance_id", rec.InstanceID).Msg("failed to remove orphaned record")
			continue
		}
		if r.auditor != nil {
			_ = r.auditor.AppendAudit(types.AuditEntry{
				Timestamp:  time.Now(),
				Actor:      "reconciler",
				Action:     "orphan-removed",
				InstanceID: rec.InstanceID,
				Detail:     "registry record had no live instance and a dead PID",
			})
		}
	}

	return nil
}

// processAlive reports whether pid refers to a running process, using
// signal 0 (no-op delivery that only checks existence/permission).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil
}
