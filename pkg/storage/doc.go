// Package storage persists the crash-recovery mirrors named in
// SPEC_FULL.md §6: the instance registry, the dead-letter sink, and the
// audit log. None of these are the daemon's live source of truth — the
// process manager's in-memory map and the router's in-memory queues are —
// these files exist only so a restarted daemon or an external tool can
// answer "what was running" or "what got dropped" without a live process.
//
// Registry is a single JSON document rewritten atomically (write-temp,
// fsync, rename) under an advisory lock taken with golang.org/x/sys/unix.Flock,
// mirroring the teacher's approach to exclusive single-writer access without
// pulling in an embedded transactional database: the registry has one
// writer (the process manager) and infrequent, whole-document writes, so a
// B+tree's concurrency guarantees buy nothing here. DeadLetters and the
// audit trail are pure append logs, one JSON object per line, opened with
// the same advisory lock for the duration of each append.
package storage
