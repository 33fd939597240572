package reasoner

import (
	"context"
	"sync"
)

// Stub is a deterministic, scripted Reasoner: each call to Reason returns
// the next entry in Script, in order, regardless of the prompt contents.
// Grounded in the corpus's own test-double pattern (e.g. pkg/health's
// overridable Dialer) — used by worker-runtime tests and as an
// offline-authoring backend so a template can be exercised without a real
// model call.
type Stub struct {
	mu     sync.Mutex
	script []Result
	calls  []PromptContext
	next   int

	// Repeat makes the last scripted Result repeat forever once Script is
	// exhausted, instead of erroring. Useful for tests that don't care how
	// many turns a loop runs.
	Repeat bool
}

// NewStub creates a Stub that returns each of script in order.
func NewStub(script ...Result) *Stub {
	return &Stub{script: script}
}

func (s *Stub) Reason(_ context.Context, promptCtx PromptContext) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, promptCtx)

	if s.next >= len(s.script) {
		if s.Repeat && len(s.script) > 0 {
			return s.script[len(s.script)-1], nil
		}
		return Result{}, &ErrMalformedReply{Raw: "", Err: errScriptExhausted}
	}
	r := s.script[s.next]
	s.next++
	return r, nil
}

// Calls returns every PromptContext Reason was invoked with, in order —
// lets a test assert on what the worker actually sent (history length,
// scratchpad contents, substituted placeholders).
func (s *Stub) Calls() []PromptContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PromptContext, len(s.calls))
	copy(out, s.calls)
	return out
}

var errScriptExhausted = scriptExhaustedError{}

type scriptExhaustedError struct{}

func (scriptExhaustedError) Error() string { return "reasoner: stub script exhausted" }

var _ Reasoner = (*Stub)(nil)
