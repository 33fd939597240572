package agent

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/ago/pkg/codec"
	"github.com/corvid-labs/ago/pkg/reasoner"
	"github.com/corvid-labs/ago/pkg/tool"
	"github.com/corvid-labs/ago/pkg/types"
)

func newTestWorker(t *testing.T, cfg Config) *Worker {
	t.Helper()
	dir := t.TempDir()
	if cfg.SocketPath == "" {
		cfg.SocketPath = filepath.Join(dir, "instance.sock")
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(dir, "instance.log")
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = "researcher-deadbeef"
	}
	if cfg.TemplateName == "" {
		cfg.TemplateName = "researcher"
	}
	w := New(cfg)
	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)
	return w
}

func dialAndRoundTrip(t *testing.T, socketPath string, req *codec.Request) []*codec.Frame {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, codec.WriteRequest(conn, req))

	var frames []*codec.Frame
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		frame, err := codec.ReadFrame(conn)
		if err != nil {
			break
		}
		frames = append(frames, frame)
		if frame.Response != nil {
			break
		}
	}
	return frames
}

func TestPingAnswersOkWhenReady(t *testing.T) {
	w := newTestWorker(t, Config{
		Reasoner: reasoner.NewStub(reasoner.FinalAnswer("done")),
	})

	frames := dialAndRoundTrip(t, w.cfg.SocketPath, &codec.Request{Op: codec.WorkerOpPing})
	require.Len(t, frames, 1)
	require.NotNil(t, frames[0].Response)
	assert.Equal(t, "ok", frames[0].Response.Status)
}

func TestPingErrorsAfterStop(t *testing.T) {
	w := newTestWorker(t, Config{
		Reasoner: reasoner.NewStub(reasoner.FinalAnswer("done")),
	})
	w.Stop()

	_, err := net.Dial("unix", w.cfg.SocketPath)
	assert.Error(t, err)
}

func TestChatReturnsFinalAnswerOnFirstTurn(t *testing.T) {
	w := newTestWorker(t, Config{
		Template: types.Template{Prompt: "you are helpful"},
		Reasoner: reasoner.NewStub(reasoner.FinalAnswer("the answer is 42")),
	})

	args, err := json.Marshal(chatArgs{Agent: w.cfg.InstanceID, Message: "what is the answer?"})
	require.NoError(t, err)

	frames := dialAndRoundTrip(t, w.cfg.SocketPath, &codec.Request{Op: codec.WorkerOpChat, Args: args})
	require.NotEmpty(t, frames)

	last := frames[len(frames)-1]
	require.NotNil(t, last.Response)
	assert.Equal(t, "ok", last.Response.Status)

	var foundComplete bool
	for _, f := range frames {
		if f.Event != nil && f.Event.EventKind == codec.EventTurnComplete {
			foundComplete = true
			var outcome turnOutcome
			require.NoError(t, json.Unmarshal(f.Event.Payload, &outcome))
			assert.Equal(t, "the answer is 42", outcome.Text)
			assert.Equal(t, 1, outcome.Iterations)
		}
	}
	assert.True(t, foundComplete, "expected a turn-complete event")
	assert.Equal(t, 2, w.conv.Len(), "one user entry and one agent entry")
}

func TestChatDispatchesToolCallBeforeFinalAnswer(t *testing.T) {
	registry := tool.NewStaticRegistry()
	registry.Register(tool.Descriptor{Name: "search", Description: "looks things up"},
		func(ctx context.Context, params map[string]interface{}) (string, error) {
			return "search result: 42", nil
		})

	w := newTestWorker(t, Config{
		Template: types.Template{Prompt: "you are helpful", Tools: []string{"search"}},
		Tools:    registry,
		Reasoner: reasoner.NewStub(
			reasoner.ToolCall("search", map[string]interface{}{"query": "life"}),
			reasoner.FinalAnswer("42, per search"),
		),
	})

	args, _ := json.Marshal(chatArgs{Agent: w.cfg.InstanceID, Message: "what is the meaning of life?"})
	frames := dialAndRoundTrip(t, w.cfg.SocketPath, &codec.Request{Op: codec.WorkerOpChat, Args: args})

	var outcome turnOutcome
	for _, f := range frames {
		if f.Event != nil && f.Event.EventKind == codec.EventTurnComplete {
			require.NoError(t, json.Unmarshal(f.Event.Payload, &outcome))
		}
	}
	assert.Equal(t, "42, per search", outcome.Text)
	assert.Equal(t, 2, outcome.Iterations)
}

func TestChatTruncatesAtMaxIterations(t *testing.T) {
	registry := tool.NewStaticRegistry()
	registry.Register(tool.Descriptor{Name: "loop"},
		func(ctx context.Context, params map[string]interface{}) (string, error) {
			return "still looking", nil
		})

	stub := reasoner.NewStub(reasoner.ToolCall("loop", nil))
	stub.Repeat = true

	w := newTestWorker(t, Config{
		Template:      types.Template{Tools: []string{"loop"}},
		Tools:         registry,
		Reasoner:      stub,
		MaxIterations: 3,
	})

	args, _ := json.Marshal(chatArgs{Agent: w.cfg.InstanceID, Message: "go"})
	frames := dialAndRoundTrip(t, w.cfg.SocketPath, &codec.Request{Op: codec.WorkerOpChat, Args: args})

	var foundTruncated bool
	for _, f := range frames {
		if f.Event != nil && f.Event.EventKind == codec.EventTurnTruncated {
			foundTruncated = true
			var outcome turnOutcome
			require.NoError(t, json.Unmarshal(f.Event.Payload, &outcome))
			assert.Equal(t, 3, outcome.Iterations)
		}
	}
	assert.True(t, foundTruncated)
}

func TestDecideRetriesOnParseFailureThenFallsBack(t *testing.T) {
	w := newTestWorker(t, Config{
		Reasoner: reasoner.ReasonFunc(func(ctx context.Context, pc reasoner.PromptContext) (reasoner.Result, error) {
			return reasoner.Result{}, &reasoner.ErrMalformedReply{Raw: "garbage", Err: assert.AnError}
		}),
		ParseRetries: 2,
	})

	result := w.decide("hello")
	assert.Equal(t, reasoner.KindFinalAnswer, result.Kind)
	assert.Equal(t, "I could not form a valid step", result.Text)
}

func TestDeliverEnqueuesWithoutBlockingSender(t *testing.T) {
	w := newTestWorker(t, Config{
		Reasoner: reasoner.NewStub(reasoner.FinalAnswer("ack")),
	})

	msg := types.Message{Origin: "other-instance", Destination: w.cfg.InstanceID, Payload: "hello from a peer", Kind: types.MessageAgent}
	args, err := json.Marshal(msg)
	require.NoError(t, err)

	frames := dialAndRoundTrip(t, w.cfg.SocketPath, &codec.Request{Op: codec.WorkerOpDeliver, Args: args})
	require.Len(t, frames, 1)
	assert.Equal(t, "ok", frames[0].Response.Status)

	require.Eventually(t, func() bool {
		for _, e := range w.conv.Last(0) {
			if e.Kind == types.MessageAgent && e.Content == "hello from a peer" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestRecordOutgoingAppendsWithoutGoingThroughTurnLoop(t *testing.T) {
	w := newTestWorker(t, Config{
		Reasoner: reasoner.NewStub(),
	})

	msg := types.Message{Origin: w.cfg.InstanceID, Destination: "peer", Payload: "I said this"}
	args, err := json.Marshal(msg)
	require.NoError(t, err)

	frames := dialAndRoundTrip(t, w.cfg.SocketPath, &codec.Request{Op: codec.WorkerOpRecordOutgoing, Args: args})
	require.Len(t, frames, 1)
	assert.Equal(t, "ok", frames[0].Response.Status)

	entries := w.conv.Last(0)
	require.Len(t, entries, 1)
	assert.Equal(t, types.MessageAgent, entries[0].Kind)
	assert.Equal(t, "I said this", entries[0].Content)
}

func TestScratchpadClearedBetweenTurns(t *testing.T) {
	s := NewScratchpad(0)
	s.Append("first observation")
	assert.NotEmpty(t, s.String())
	s.Clear()
	assert.Empty(t, s.String())
}

func TestConversationLogDropsOldestPastCapacity(t *testing.T) {
	c := NewConversationLog(2)
	c.Append(types.MessageUser, "one")
	c.Append(types.MessageAgent, "two")
	c.Append(types.MessageUser, "three")

	entries := c.Last(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "two", entries[0].Content)
	assert.Equal(t, "three", entries[1].Content)
}
