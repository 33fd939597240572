// Package process supervises agent worker subprocesses (SPEC_FULL.md
// C5/§4.5): spawning a worker binary per instance, tracking its PID and
// socket path, running a SocketPingChecker on a ticker to detect a
// crashed worker, and walking the grace/kill signal ladder on stop.
// The in-memory instance map is the single live source of truth; the
// on-disk registry (pkg/storage) is a crash-recovery mirror only.
package process
