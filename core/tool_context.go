package core

import (
	"context"

	"github.com/hupe1980/beehive/logging"
)

// ToolContext is the scoped surface handed to a tool invocation. It carries
// the run's cancellation context, the originating function call id, the
// calling agent and a logger.
type ToolContext struct {
	ctx            context.Context
	functionCallID string
	agentInfo      AgentInfo
	onUpdate       UpdateFunc
	logger         logging.Logger
}

// NewToolContext constructs a tool context bound to ctx and functionCallID.
// A nil logger is replaced by a NoOpLogger.
func NewToolContext(ctx context.Context, functionCallID string, agent AgentInfo, logger logging.Logger) *ToolContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{
		ctx:            ctx,
		functionCallID: functionCallID,
		agentInfo:      agent,
		logger:         logger,
	}
}

// Logger returns the logger of the invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// WithUpdates returns a copy whose Emit forwards to f.
func (tc *ToolContext) WithUpdates(f UpdateFunc) *ToolContext {
	c := *tc
	c.onUpdate = f
	return &c
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the agent name associated with the tool invocation.
func (tc *ToolContext) AgentName() string { return tc.agentInfo.Name }

// AgentType returns the agent type associated with the tool invocation.
func (tc *ToolContext) AgentType() string { return tc.agentInfo.Type }

// Emit forwards a partial update produced by the tool, if anyone listens.
func (tc *ToolContext) Emit(key, value string) { tc.onUpdate.Emit(key, value) }
