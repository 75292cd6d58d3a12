package flow

import (
	"context"

	"github.com/hupe1980/beehive/model"
	"github.com/hupe1980/beehive/tool"
)

// InstructionsProcessor sets the system prompt.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest adds system instructions to the request.
func (p *InstructionsProcessor) ProcessRequest(_ context.Context, req *model.Request, agent FlowAgent) error {
	req.Instructions = agent.Instructions()
	return nil
}

// ContentsProcessor loads the conversation from agent memory.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest copies the memory into the request.
func (p *ContentsProcessor) ProcessRequest(_ context.Context, req *model.Request, agent FlowAgent) error {
	if mem := agent.Memory(); mem != nil {
		req.Contents = mem.Messages()
	}
	return nil
}

// ToolsProcessor declares the agent tools and the streaming preference.
type ToolsProcessor struct{}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor() *ToolsProcessor { return &ToolsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest adds tool declarations to the request.
func (p *ToolsProcessor) ProcessRequest(_ context.Context, req *model.Request, agent FlowAgent) error {
	req.Tools = tool.Definitions(agent.Tools())
	req.Stream = agent.IsStreamingEnabled()
	return nil
}

// DefaultRequestProcessors returns the processors every loop starts with.
func DefaultRequestProcessors() []RequestProcessor {
	return []RequestProcessor{
		NewInstructionsProcessor(),
		NewContentsProcessor(),
		NewToolsProcessor(),
	}
}
