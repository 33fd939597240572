// Package reconciler runs a periodic sweep of the on-disk registry mirror
// (pkg/storage) against the process manager's live instance set. Per-instance
// liveness is pkg/process's own job (a SocketPingChecker ticker per handle);
// this package instead answers the question "does the registry mirror still
// agree with reality" — a concern that only arises across daemon restarts or
// after an unclean shutdown left stale entries behind, not on the steady-state
// health path.
//
// A registry record with no corresponding live instance and a PID that is no
// longer running is an orphan: the daemon that wrote it is gone and nothing
// will ever reap it through the normal Stop/crash path, so Reconciler removes
// it and records why. A record whose PID is still alive but untracked is left
// alone and only logged — ago never adopts a process it didn't spawn.
package reconciler
