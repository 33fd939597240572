package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/corvid-labs/ago/pkg/types"
)

const (
	placeholderTools   = "{{AVAILABLE_TOOLS}}"
	placeholderNetwork = "{{AGENT_NETWORK}}"
)

const promptPrefix = `You are agent %s, an instance of the "%s" template. Answer truthfully and
concisely. You act autonomously between turns: nothing you say is shown to
a human unless you emit a final answer.`

const promptSuffix = `Respond with exactly one JSON object on a single line, no surrounding
prose, matching one of:
  {"type":"final_answer","text":"..."}
  {"type":"tool_call","name":"...","params":{...}}`

// BuildPrompt assembles the prefix, the template's custom section (with
// {{AVAILABLE_TOOLS}} and {{AGENT_NETWORK}} substituted), the rolling
// history and scratchpad, and the grammar-fixing suffix.
func BuildPrompt(ctx PromptContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, promptPrefix, ctx.InstanceID, ctx.TemplateName)
	b.WriteString("\n\n")

	custom := ctx.SystemPrompt
	custom = strings.ReplaceAll(custom, placeholderTools, strings.Join(ctx.AvailableTools, ", "))
	custom = strings.ReplaceAll(custom, placeholderNetwork, strings.Join(ctx.AgentNetwork, ", "))
	b.WriteString(custom)
	b.WriteString("\n\n")

	if len(ctx.History) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, entry := range ctx.History {
			fmt.Fprintf(&b, "[%s] %s\n", entry.Kind, entry.Content)
		}
		b.WriteString("\n")
	}

	if ctx.Scratchpad != "" {
		b.WriteString("Scratchpad:\n")
		b.WriteString(ctx.Scratchpad)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "User message: %s\n\n", ctx.UserMessage)
	b.WriteString(promptSuffix)

	if ctx.RetryHint != "" {
		b.WriteString("\n\nYour previous reply did not match the grammar: ")
		b.WriteString(ctx.RetryHint)
	}

	return b.String()
}

// rawReply is the wire shape the suffix grammar commits the model to.
type rawReply struct {
	Type   string                 `json:"type"`
	Text   string                 `json:"text,omitempty"`
	Name   string                 `json:"name,omitempty"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// ErrMalformedReply is wrapped into the error Parse returns when raw does
// not match the grammar the suffix committed the model to.
type ErrMalformedReply struct {
	Raw string
	Err error
}

func (e *ErrMalformedReply) Error() string {
	return fmt.Sprintf("reasoner: malformed reply %q: %v", e.Raw, e.Err)
}

func (e *ErrMalformedReply) Unwrap() error { return e.Err }

// Parse decodes one model reply into a Result, per the grammar BuildPrompt's
// suffix commits the model to.
func Parse(raw string) (Result, error) {
	trimmed := strings.TrimSpace(raw)
	// Models occasionally wrap the JSON in a fenced code block despite the
	// suffix's instructions; strip one if present rather than failing.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var reply rawReply
	if err := json.Unmarshal([]byte(trimmed), &reply); err != nil {
		return Result{}, &ErrMalformedReply{Raw: raw, Err: err}
	}

	switch reply.Type {
	case string(KindFinalAnswer):
		return FinalAnswer(reply.Text), nil
	case string(KindToolCall):
		if reply.Name == "" {
			return Result{}, &ErrMalformedReply{Raw: raw, Err: fmt.Errorf("tool_call missing name")}
		}
		return ToolCall(reply.Name, reply.Params), nil
	default:
		return Result{}, &ErrMalformedReply{Raw: raw, Err: fmt.Errorf("unknown type %q", reply.Type)}
	}
}

// ModelClient is the raw, single-turn completion boundary a PromptAdapter
// delegates to — the actual LLM call, out of scope per SPEC_FULL.md §1.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PromptAdapter implements Reasoner by assembling a prompt with BuildPrompt,
// delegating the call to an injected ModelClient, and parsing the reply
// with Parse. It never loops — a malformed reply is returned as an error
// for the caller (pkg/agent) to retry with a RetryHint.
type PromptAdapter struct {
	client ModelClient
}

// NewPromptAdapter builds a PromptAdapter over client.
func NewPromptAdapter(client ModelClient) *PromptAdapter {
	return &PromptAdapter{client: client}
}

func (a *PromptAdapter) Reason(ctx context.Context, promptCtx PromptContext) (Result, error) {
	prompt := BuildPrompt(promptCtx)
	raw, err := a.client.Complete(ctx, prompt)
	if err != nil {
		return Result{}, err
	}
	return Parse(raw)
}

var _ Reasoner = (*PromptAdapter)(nil)
var _ Reasoner = ReasonFunc(nil)
