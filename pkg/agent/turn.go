package agent

import (
	"context"
	"encoding/json"

	"github.com/corvid-labs/ago/pkg/codec"
	"github.com/corvid-labs/ago/pkg/reasoner"
	"github.com/corvid-labs/ago/pkg/types"
)

// processLoop is the single goroutine that makes turns strictly
// sequential: a new turn never starts until the previous one reaches
// turn-complete or turn-truncated (SPEC_FULL.md §5).
func (w *Worker) processLoop() {
	defer w.wg.Done()
	for {
		select {
		case job := <-w.jobs:
			w.runTurn(job)
		case <-w.stopCh:
			return
		}
	}
}

// turnOutcome is the payload attached to the terminal event of a turn,
// JSON-encoded into that event's Payload field.
type turnOutcome struct {
	Text       string `json:"text,omitempty"`
	Iterations int    `json:"iterations"`
}

// runTurn executes one Prepare/Decide/Observe cycle to completion or
// truncation (SPEC_FULL.md §4.8 step 2-3). The scratchpad is cleared on
// exit so the next turn starts clean.
func (w *Worker) runTurn(job inboundJob) {
	defer w.scratch.Clear()
	defer func() {
		if job.events != nil {
			close(job.events)
		}
	}()

	w.conv.Append(job.kind, job.message)
	w.writeLog(job.kind, job.message)

	for iteration := 1; iteration <= w.maxIterations; iteration++ {
		result := w.decide(job.message)

		switch result.Kind {
		case reasoner.KindToolCall:
			observation := w.invokeTool(result.ToolName, result.ToolParams)
			w.scratch.Append(observation)
		default:
			// KindFinalAnswer, and any other/empty Kind decide might
			// somehow return after exhausting its own retries, both end
			// the turn — decide never leaves a malformed reply pending.
			w.emitTurnComplete(job, result.Text, iteration)
			return
		}
	}

	w.emitTurnTruncated(job, w.maxIterations)
}

// decide runs one Decide call, retrying up to parseRetries times on parse
// failure before synthesizing the spec's fallback final answer
// (SPEC_FULL.md §4.8 step 2). It always returns a usable Result.
func (w *Worker) decide(userMessage string) reasoner.Result {
	promptCtx := reasoner.PromptContext{
		InstanceID:     w.cfg.InstanceID,
		TemplateName:   w.cfg.TemplateName,
		SystemPrompt:   w.cfg.Template.Prompt,
		Model:          w.cfg.Template.Model,
		Temperature:    w.cfg.Template.Temperature,
		AvailableTools: w.cfg.Template.Tools,
		AgentNetwork:   w.cfg.AgentNetwork,
		History:        w.conv.Last(w.historyWindow),
		Scratchpad:     w.scratch.String(),
		UserMessage:    userMessage,
	}

	var lastErr error
	for attempt := 0; attempt <= w.parseRetries; attempt++ {
		if attempt > 0 {
			promptCtx.RetryHint = lastErr.Error()
		}
		ctx, cancel := context.WithTimeout(context.Background(), defaultReasonTimeout)
		result, err := w.reasoner.Reason(ctx, promptCtx)
		cancel()
		if err == nil {
			return result
		}
		lastErr = err
		w.logger.Warn().Err(err).Int("attempt", attempt).Msg("reasoner parse failure")
	}

	return reasoner.FinalAnswer("I could not form a valid step")
}

func (w *Worker) invokeTool(name string, params map[string]interface{}) string {
	if w.tools == nil {
		return "tool error: no tool invoker configured"
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultReasonTimeout)
	defer cancel()
	result, err := w.tools.Invoke(ctx, name, params)
	if err != nil {
		w.logger.Warn().Err(err).Str("tool", name).Msg("tool invocation failed")
		return "tool " + name + " error: " + err.Error()
	}
	return "tool " + name + " result: " + result.Output
}

func (w *Worker) emitTurnComplete(job inboundJob, text string, iterations int) {
	w.conv.Append(types.MessageAgent, text)
	payload, _ := json.Marshal(turnOutcome{Text: text, Iterations: iterations})
	w.writeLog(types.MessageAgent, text)
	w.logger.Info().Int("iterations", iterations).Msg("turn complete")
	if job.events != nil {
		job.events <- codec.Event{EventKind: codec.EventTurnComplete, Payload: payload}
	}
}

func (w *Worker) emitTurnTruncated(job inboundJob, iterations int) {
	w.logger.Warn().Int("iterations", iterations).Msg("turn truncated")
	payload, _ := json.Marshal(turnOutcome{Iterations: iterations})
	w.writeLog(types.MessageSystem, "turn truncated")
	if job.events != nil {
		job.events <- codec.Event{EventKind: codec.EventTurnTruncated, Payload: payload}
	}
}
