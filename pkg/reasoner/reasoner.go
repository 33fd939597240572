package reasoner

import (
	"context"

	"github.com/corvid-labs/ago/pkg/types"
)

// PromptContext is everything the adapter needs to assemble one call to
// the model: the template's static identity, the dynamic surface it is
// allowed to mention, and the turn's accumulated state.
type PromptContext struct {
	InstanceID   string
	TemplateName string
	SystemPrompt string
	Model        string
	Temperature  float64

	// AvailableTools names the tools declared by the template, substituted
	// into {{AVAILABLE_TOOLS}} in the template's custom prompt section.
	AvailableTools []string
	// AgentNetwork names the other live instances, substituted into
	// {{AGENT_NETWORK}}.
	AgentNetwork []string

	// History is the last N conversation entries (SPEC_FULL.md §4.8,
	// default 20), oldest first.
	History []types.ConversationEntry
	// Scratchpad is the current turn's accumulated tool observations,
	// already truncated to max_scratch by the worker.
	Scratchpad string
	// UserMessage is the pending turn input.
	UserMessage string

	// RetryHint is set on a retried call following a parse failure: the
	// adapter appends it to the suffix so the model sees what went wrong.
	RetryHint string
}

// ResultKind distinguishes the two shapes a Reason call can return.
type ResultKind string

const (
	KindFinalAnswer ResultKind = "final_answer"
	KindToolCall    ResultKind = "tool_call"
)

// Result is the parsed tagged union SPEC_FULL.md §4.9 calls ReasonerResult.
// Exactly one of the two payloads is meaningful, selected by Kind.
type Result struct {
	Kind ResultKind

	// Set when Kind == KindFinalAnswer.
	Text string

	// Set when Kind == KindToolCall.
	ToolName   string
	ToolParams map[string]interface{}
}

// FinalAnswer builds a Result carrying a final answer.
func FinalAnswer(text string) Result {
	return Result{Kind: KindFinalAnswer, Text: text}
}

// ToolCall builds a Result carrying a tool invocation request.
func ToolCall(name string, params map[string]interface{}) Result {
	return Result{Kind: KindToolCall, ToolName: name, ToolParams: params}
}

// Reasoner is the injected model-call boundary (out of scope per §1 — no
// concrete LLM client ships here). Reason must not loop or retry; a
// malformed reply is surfaced as an error, which pkg/agent interprets as a
// parse failure and retries with a RetryHint.
type Reasoner interface {
	Reason(ctx context.Context, promptCtx PromptContext) (Result, error)
}

// ReasonFunc adapts a plain function to the Reasoner interface, mirroring
// the adapter-as-function-value idiom the corpus uses for small interface
// boundaries (e.g. health.Checker's test doubles).
type ReasonFunc func(ctx context.Context, promptCtx PromptContext) (Result, error)

func (f ReasonFunc) Reason(ctx context.Context, promptCtx PromptContext) (Result, error) {
	return f(ctx, promptCtx)
}
