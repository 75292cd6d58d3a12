package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/flow"
	"github.com/hupe1980/beehive/logging"
	"github.com/hupe1980/beehive/memory"
	"github.com/hupe1980/beehive/model"
	"github.com/hupe1980/beehive/tool"
)

// ReasoningAgentOptions configures a ReasoningAgent instance.
//
// Use functional options with NewReasoningAgent to override defaults.
type ReasoningAgentOptions struct {
	Type            string
	Description     string
	Instructions    string
	Tools           []tool.Tool
	Memory          *memory.TokenMemory
	Counter         memory.TokenCounter
	EnableStreaming bool
	MaxParallel     int
	Logger          logging.Logger
}

// ReasoningAgent is a local agent driven by a language model. It is not safe
// for concurrent runs: Run serializes callers.
type ReasoningAgent struct {
	name         string
	agentType    string
	description  string
	instructions string
	llm          model.Model
	tools        []tool.Tool
	memory       *memory.TokenMemory
	streaming    bool
	logger       logging.Logger
	loop         *flow.Loop

	mu sync.Mutex
}

// NewReasoningAgent creates a reasoning agent. Unless a memory is supplied,
// the agent gets a TokenMemory sized to the model's token budget.
func NewReasoningAgent(name string, llm model.Model, optFns ...func(o *ReasoningAgentOptions)) *ReasoningAgent {
	opts := ReasoningAgentOptions{
		Type:            name,
		Instructions:    fmt.Sprintf("You are %s, a helpful AI assistant.", name),
		EnableStreaming: true,
		Counter:         memory.ApproxCounter{},
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Memory == nil {
		maxTokens := llm.Info().MaxTokens
		if maxTokens <= 0 {
			maxTokens = model.DefaultMaxTokens
		}
		counter := opts.Counter
		opts.Memory = memory.NewTokenMemory(maxTokens, func(o *memory.TokenMemoryOptions) { o.Counter = counter })
	}

	a := &ReasoningAgent{
		name:         name,
		agentType:    opts.Type,
		description:  opts.Description,
		instructions: opts.Instructions,
		llm:          llm,
		tools:        append([]tool.Tool(nil), opts.Tools...),
		memory:       opts.Memory,
		streaming:    opts.EnableStreaming,
		logger:       opts.Logger,
	}

	a.loop = flow.NewLoop(a, func(o *flow.LoopOptions) {
		o.Logger = opts.Logger
		o.Executor = flow.NewParallelFunctionExecutor(flow.FunctionExecutorConfig{
			MaxParallel: opts.MaxParallel,
			Logger:      opts.Logger,
		})
	})

	return a
}

// Name returns the agent id.
func (a *ReasoningAgent) Name() string { return a.name }

// Description returns the human readable description.
func (a *ReasoningAgent) Description() string { return a.description }

// Info implements flow.FlowAgent.
func (a *ReasoningAgent) Info() core.AgentInfo {
	return core.AgentInfo{Name: a.name, Type: a.agentType}
}

// LLM implements flow.FlowAgent.
func (a *ReasoningAgent) LLM() model.Model { return a.llm }

// Instructions implements flow.FlowAgent.
func (a *ReasoningAgent) Instructions() string { return a.instructions }

// Tools implements flow.FlowAgent.
func (a *ReasoningAgent) Tools() []tool.Tool { return a.tools }

// Memory implements flow.FlowAgent.
func (a *ReasoningAgent) Memory() *memory.TokenMemory { return a.memory }

// IsStreamingEnabled implements flow.FlowAgent.
func (a *ReasoningAgent) IsStreamingEnabled() bool { return a.streaming }

// ToolNames returns the names of the bound tools in declaration order.
func (a *ReasoningAgent) ToolNames() []string {
	names := make([]string, 0, len(a.tools))
	for _, t := range a.tools {
		names = append(names, t.Name())
	}
	return names
}

// Run sends prompt to the agent and returns its final answer. Partial
// updates are forwarded to onUpdate in the order they are produced.
func (a *ReasoningAgent) Run(ctx context.Context, prompt string, policy core.ExecutionPolicy, onUpdate core.UpdateFunc) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	a.logger.Debug("agent.run.start", "agent", a.name, "type", a.agentType, "tools", len(a.tools))

	answer, err := a.loop.Run(ctx, prompt, policy, onUpdate)
	if err != nil {
		a.logger.Warn("agent.run.error", "agent", a.name, "error", err.Error(), "duration_ms", time.Since(start).Milliseconds())
		return "", err
	}

	a.logger.Debug("agent.run.complete", "agent", a.name, "duration_ms", time.Since(start).Milliseconds(), "memory_tokens", a.memory.Tokens())
	return answer, nil
}

// Reset clears the conversation memory.
func (a *ReasoningAgent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memory.Reset()
}

var _ flow.FlowAgent = (*ReasoningAgent)(nil)
