package types

import (
	"errors"
	"fmt"
)

// Kind is a stable, client-facing error category (see SPEC_FULL.md §7).
// Handlers return a *Error wrapping one of these so the control server can
// render a {status:error, kind, message} response without string-matching.
type Kind string

const (
	// Client-facing, recoverable.
	KindNoSuchAgent        Kind = "NoSuchAgent"
	KindAmbiguousAgent     Kind = "AmbiguousAgent"
	KindNoSuchTemplate     Kind = "NoSuchTemplate"
	KindBadTemplate        Kind = "BadTemplate"
	KindQueueFull          Kind = "QueueFull"
	KindToolTimeout        Kind = "ToolTimeout"
	KindReasonerParseError Kind = "ReasonerParseError"
	KindConfigInvalid      Kind = "ConfigInvalid"
	KindAlreadyRunning     Kind = "AlreadyRunning"
	KindNotRunning         Kind = "NotRunning"

	// Infrastructure.
	KindSocketIO        Kind = "SocketIO"
	KindDecodeFailure   Kind = "DecodeFailure"
	KindRegistryCorrupt Kind = "RegistryCorrupt"
	KindSpawnFailed     Kind = "SpawnFailed"
	KindChildCrashed    Kind = "ChildCrashed"

	// Fatal — the daemon aborts startup.
	KindBindFailed          Kind = "BindFailed"
	KindBaseDirInaccessible Kind = "BaseDirInaccessible"
)

// Error is the typed error every daemon-facing operation returns on
// failure. Kind is stable and safe to switch on; Err carries the wrapped
// cause for logs and %w chains.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError constructs an *Error of the given kind wrapping cause (which
// may be nil).
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the Kind from err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
