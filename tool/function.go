package tool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/internal/util"
)

// Function is the implementation behind a FunctionTool.
type Function func(toolCtx *core.ToolContext, args map[string]any) (any, error)

// FunctionTool exposes a Go function as a tool. Arguments are validated
// against the parameter schema before the function runs, and failures are
// reported as *ToolError:
//
//	VALIDATION_ERROR  arguments rejected by the schema
//	SCHEMA_ERROR      the schema itself does not compile
//	EXECUTION_ERROR   the function returned a plain error
//
// A *ToolError returned by the function keeps its own code. FunctionTool is
// safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          Function

	compileOnce sync.Once
	schema      *util.Schema
	schemaErr   error
}

// NewFunctionTool creates a FunctionTool. The schema is compiled on the
// first call.
//
//	echo := NewFunctionTool("echo", "Echo the prompt",
//		map[string]any{
//			"type":       "object",
//			"properties": map[string]any{"prompt": map[string]any{"type": "string"}},
//			"required":   []string{"prompt"},
//		},
//		func(_ *core.ToolContext, args map[string]any) (any, error) {
//			return args["prompt"], nil
//		},
//	)
func NewFunctionTool(name, description string, parameters map[string]any, fn Function) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from the json tags
// of structType.
func NewFunctionToolFromStruct(name, description string, structType any, fn Function) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name returns the tool name used in function call declarations.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the description shown to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema of the arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args and invokes the function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID(), "agent", toolCtx.AgentName())

	t.compileOnce.Do(func() {
		t.schema, t.schemaErr = util.CompileSchema(t.parameters)
	})
	if t.schemaErr != nil {
		logger.Error("tool.call.schema_invalid", "tool", t.name, "error", t.schemaErr.Error())
		return nil, &ToolError{Tool: t.name, Message: t.schemaErr.Error(), Code: "SCHEMA_ERROR", Details: t.schemaErr}
	}

	if err := t.schema.Validate(args); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())
		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
			Details: err,
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if !errors.As(err, &toolErr) {
			toolErr = &ToolError{Tool: t.name, Message: err.Error(), Code: "EXECUTION_ERROR"}
		}
		logger.Error("tool.call.error", "tool", t.name, "code", toolErr.Code, "error", toolErr.Message)
		return nil, toolErr
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}
