// Package config implements the two-level configuration store (SPEC_FULL.md
// §4.3): a global file under the daemon's base directory overridden by a
// per-working-directory file. Scalars overwrite, mappings deep-merge, and
// lists fully replace — never append — on merge. String leaves of the form
// "${NAME}" are substituted against the process environment post-parse;
// unknown names evaluate to empty, matching shell-adjacent tools in the
// pack rather than failing closed.
package config
