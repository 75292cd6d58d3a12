// Package flow implements the bounded reasoning loop that drives a local
// agent: build a request, call the model, execute requested tools, repeat
// until the model answers without tool calls.
//
// A step is one model turn plus the tool calls it requested. Failed steps are
// rolled back and retried within the budgets of a core.ExecutionPolicy.
package flow

import (
	"context"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/memory"
	"github.com/hupe1980/beehive/model"
	"github.com/hupe1980/beehive/tool"
)

// FlowAgent is what the loop needs from an agent.
type FlowAgent interface {
	// Info identifies the agent in tool contexts and log lines.
	Info() core.AgentInfo

	// LLM returns the language model instance.
	LLM() model.Model

	// Instructions returns the rendered system prompt.
	Instructions() string

	// Tools returns the tools offered to the model, in declaration order.
	Tools() []tool.Tool

	// Memory returns the conversation memory of the agent.
	Memory() *memory.TokenMemory

	// IsStreamingEnabled returns whether streaming responses are requested.
	IsStreamingEnabled() bool
}

// RequestProcessor shapes the model request before each turn.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before LLM execution.
	ProcessRequest(ctx context.Context, req *model.Request, agent FlowAgent) error
}
