// Package identity mints instance IDs and resolves friendly names back to
// them (SPEC_FULL.md §4.4). An instance ID is always "<template>-<8 hex>";
// it is the only identifier used for routing, log filenames, and socket
// paths. Index additionally tracks an optional custom name per instance so
// ResolveAgent can look an instance up by template name (when exactly one
// instance of that template is running) or by its custom name, failing
// with AmbiguousAgent rather than guessing when more than one candidate
// matches.
package identity
