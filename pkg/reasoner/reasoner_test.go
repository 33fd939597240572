package reasoner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPromptSubstitutesPlaceholders(t *testing.T) {
	prompt := BuildPrompt(PromptContext{
		InstanceID:     "researcher-aabbccdd",
		TemplateName:   "researcher",
		SystemPrompt:   "Tools: {{AVAILABLE_TOOLS}}. Peers: {{AGENT_NETWORK}}.",
		AvailableTools: []string{"search", "fetch"},
		AgentNetwork:   []string{"writer-11223344"},
		UserMessage:    "find the latest release notes",
	})

	assert.Contains(t, prompt, "Tools: search, fetch. Peers: writer-11223344.")
	assert.Contains(t, prompt, "researcher-aabbccdd")
	assert.Contains(t, prompt, "find the latest release notes")
	assert.Contains(t, prompt, `"type":"final_answer"`)
}

func TestParseFinalAnswer(t *testing.T) {
	result, err := Parse(`{"type":"final_answer","text":"done"}`)
	require.NoError(t, err)
	assert.Equal(t, KindFinalAnswer, result.Kind)
	assert.Equal(t, "done", result.Text)
}

func TestParseToolCall(t *testing.T) {
	result, err := Parse(`{"type":"tool_call","name":"search","params":{"query":"go 1.23"}}`)
	require.NoError(t, err)
	assert.Equal(t, KindToolCall, result.Kind)
	assert.Equal(t, "search", result.ToolName)
	assert.Equal(t, "go 1.23", result.ToolParams["query"])
}

func TestParseStripsFencedCodeBlock(t *testing.T) {
	result, err := Parse("```json\n{\"type\":\"final_answer\",\"text\":\"ok\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
}

func TestParseRejectsMalformedReply(t *testing.T) {
	_, err := Parse("not json at all")
	require.Error(t, err)
	var malformed *ErrMalformedReply
	assert.ErrorAs(t, err, &malformed)
}

func TestParseRejectsUnknownType(t *testing.T) {
	_, err := Parse(`{"type":"wat"}`)
	require.Error(t, err)
}

func TestPromptAdapterParsesClientReply(t *testing.T) {
	client := ReasonFuncClient(func(ctx context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, "hello")
		return `{"type":"final_answer","text":"hi back"}`, nil
	})
	adapter := NewPromptAdapter(client)

	result, err := adapter.Reason(context.Background(), PromptContext{UserMessage: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hi back", result.Text)
}

func TestStubReturnsScriptInOrder(t *testing.T) {
	stub := NewStub(FinalAnswer("first"), ToolCall("search", nil))

	r1, err := stub.Reason(context.Background(), PromptContext{UserMessage: "a"})
	require.NoError(t, err)
	assert.Equal(t, "first", r1.Text)

	r2, err := stub.Reason(context.Background(), PromptContext{UserMessage: "b"})
	require.NoError(t, err)
	assert.Equal(t, "search", r2.ToolName)

	require.Len(t, stub.Calls(), 2)
}

func TestStubErrorsWhenScriptExhaustedWithoutRepeat(t *testing.T) {
	stub := NewStub(FinalAnswer("only"))
	_, err := stub.Reason(context.Background(), PromptContext{})
	require.NoError(t, err)

	_, err = stub.Reason(context.Background(), PromptContext{})
	require.Error(t, err)
}

// ReasonFuncClient adapts a function to ModelClient for tests, mirroring
// ReasonFunc's adapter-as-function-value idiom.
type ReasonFuncClient func(ctx context.Context, prompt string) (string, error)

func (f ReasonFuncClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
