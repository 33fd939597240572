package tool

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single Invoke call (SPEC_FULL.md §4.10).
const DefaultTimeout = 30 * time.Second

// Descriptor describes one callable tool, surfaced to the reasoner's
// prompt assembly via {{AVAILABLE_TOOLS}}.
type Descriptor struct {
	Name         string
	Description  string
	ParamsSchema map[string]interface{}
}

// Result is a successful Invoke outcome.
type Result struct {
	Output string
}

// Invoker is the boundary the worker's turn loop calls through. List is
// assumed cheap and stable between calls; Invoke may block up to its
// caller's deadline.
type Invoker interface {
	List() []Descriptor
	Invoke(ctx context.Context, name string, params map[string]interface{}) (Result, error)
}

// Handler executes one tool call. Implementations should respect ctx's
// deadline rather than relying on the caller to enforce DefaultTimeout
// externally, since a subprocess-backed handler may need to cancel its
// own child work.
type Handler func(ctx context.Context, params map[string]interface{}) (string, error)
