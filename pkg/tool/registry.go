package tool

import (
	"context"
	"sync"

	"github.com/corvid-labs/ago/pkg/types"
)

// StaticRegistry is an in-memory Invoker: every tool is registered once at
// construction or via Register, with no subprocess or network round trip
// to discover it. This is what worker-runtime tests use, and what a
// template whose tools are declared entirely inline (no tool-server
// subprocess) runs against in production.
type StaticRegistry struct {
	mu      sync.RWMutex
	descs   map[string]Descriptor
	handler map[string]Handler
}

// NewStaticRegistry creates an empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		descs:   make(map[string]Descriptor),
		handler: make(map[string]Handler),
	}
}

// Register adds or replaces one tool.
func (r *StaticRegistry) Register(desc Descriptor, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descs[desc.Name] = desc
	r.handler[desc.Name] = handler
}

// List returns every registered tool's descriptor.
func (r *StaticRegistry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.descs))
	for _, d := range r.descs {
		out = append(out, d)
	}
	return out
}

// Invoke runs name's handler, bounding it to DefaultTimeout unless ctx
// already carries a tighter deadline. A missing tool is a ToolTimeout-
// adjacent typed error the worker treats as an observation, per
// SPEC_FULL.md §4.10 ("the worker treats it as an observation, not a
// fatal error") — NoSuchAgent-shaped kinds are for routing, this is its
// own ToolTimeout/ConfigInvalid-style surface instead.
func (r *StaticRegistry) Invoke(ctx context.Context, name string, params map[string]interface{}) (Result, error) {
	r.mu.RLock()
	handler, ok := r.handler[name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, types.NewError(types.KindConfigInvalid, "unknown tool: "+name, nil)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := handler(ctx, params)
		done <- outcome{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return Result{}, types.NewError(types.KindToolTimeout, name, ctx.Err())
	case o := <-done:
		if o.err != nil {
			return Result{}, o.err
		}
		return Result{Output: o.text}, nil
	}
}

var _ Invoker = (*StaticRegistry)(nil)
