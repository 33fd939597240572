// Package registry resolves agent templates by name across the layered
// discovery set described in SPEC_FULL.md §4.2: the current working
// directory (local), a cache of remote-pulled templates, and the built-in
// set installed alongside the daemon. Resolve tries layers in the order
// the config declares (default local → pulled → builtin) and returns the
// first exact filename match; version is never consulted as a tie-break,
// since a layer is a directory keyed by filename and cannot collide with
// itself.
package registry
