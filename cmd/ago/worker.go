package main

import (
	"context"

	"github.com/corvid-labs/ago/pkg/agent"
	"github.com/corvid-labs/ago/pkg/reasoner"
	"github.com/corvid-labs/ago/pkg/tool"
	"github.com/corvid-labs/ago/pkg/types"
)

// runWorker loads the per-instance config directory pkg/control's
// materialize step wrote and runs this process as that instance's agent
// runtime until its control socket tells it to shut down.
//
// No concrete model client or tool-server transport ships with ago
// (SPEC_FULL.md §1/§9 keep the actual LLM call and tool-server wiring out
// of scope); every worker therefore runs a reasoner.Stub scripted with a
// single final answer saying no model client is configured, so the first
// `chat` turn completes with that text instead of hanging on an
// unreachable model. Later turns find the script exhausted and end in the
// worker's parse-failure fallback answer. The template's declared tool
// names are registered in a tool.StaticRegistry with a handler that fails
// with ConfigInvalid; the stub never calls a tool.
func runWorker(instanceID, socketPath, logFile, configDir string) error {
	tmpl, rt, err := agent.LoadConfigDir(configDir)
	if err != nil {
		return err
	}

	tools := tool.NewStaticRegistry()
	for _, name := range tmpl.Tools {
		toolName := name
		tools.Register(tool.Descriptor{Name: toolName}, notConfiguredHandler(toolName))
	}

	w := agent.New(agent.Config{
		InstanceID:   instanceID,
		TemplateName: rt.TemplateName,
		CustomName:   rt.CustomName,
		Template:     tmpl,
		DefaultModel: rt.DefaultModel,
		AgentNetwork: rt.AgentNetwork,
		SocketPath:   socketPath,
		LogPath:      logFile,
		Reasoner:     reasoner.NewStub(reasoner.FinalAnswer("no model client is configured for this build of ago")),
		Tools:        tools,
	})

	if err := w.Start(); err != nil {
		return err
	}
	select {} // Start launched its own goroutines; block until the OS kills us or WorkerOpShutdown calls w.Stop asynchronously.
}

func notConfiguredHandler(name string) tool.Handler {
	return func(ctx context.Context, params map[string]interface{}) (string, error) {
		return "", types.NewError(types.KindConfigInvalid, "tool not configured: "+name, nil)
	}
}
