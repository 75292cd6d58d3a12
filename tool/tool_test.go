package tool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/logging"
)

func testToolContext(fcID string) *core.ToolContext {
	return core.NewToolContext(context.Background(), fcID, core.AgentInfo{Name: "supervisor", Type: "supervisor"}, logging.NoOpLogger{})
}

func sumTool() *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
	return NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})
}

func TestFunctionTool_Success(t *testing.T) {
	result, err := sumTool().Call(testToolContext("fc1"), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_Errors(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(*core.ToolContext, map[string]any) (any, error)
		args     map[string]any
		wantCode string
	}{
		{
			name:     "validation",
			fn:       func(_ *core.ToolContext, _ map[string]any) (any, error) { return 0, nil },
			args:     map[string]any{},
			wantCode: "VALIDATION_ERROR",
		},
		{
			name:     "execution",
			fn:       func(_ *core.ToolContext, _ map[string]any) (any, error) { return nil, errors.New("boom") },
			args:     map[string]any{"a": 1.0},
			wantCode: "EXECUTION_ERROR",
		},
		{
			name: "custom code preserved",
			fn: func(_ *core.ToolContext, _ map[string]any) (any, error) {
				return nil, NewToolError("t", "nope", "CUSTOM")
			},
			args:     map[string]any{"a": 1.0},
			wantCode: "CUSTOM",
		},
	}
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "number"}},
		"required":   []any{"a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := NewFunctionTool("t", "test", params, tt.fn)
			_, err := ft.Call(testToolContext("fc"), tt.args)
			var toolErr *ToolError
			require.ErrorAs(t, err, &toolErr)
			assert.Equal(t, tt.wantCode, toolErr.Code)
		})
	}
}

func TestFunctionToolFromStruct(t *testing.T) {
	type args struct {
		Query string `json:"query" description:"Search query"`
	}
	ft := NewFunctionToolFromStruct("search", "Search", args{}, func(_ *core.ToolContext, a map[string]any) (any, error) {
		return a["query"], nil
	})
	assert.Equal(t, []string{"query"}, ft.Parameters()["required"])

	_, err := ft.Call(testToolContext("fc"), map[string]any{})
	assert.Error(t, err)
}

func TestToolEmitsUpdates(t *testing.T) {
	var (
		mu  sync.Mutex
		got []core.PartialUpdate
	)
	tc := testToolContext("fc").WithUpdates(func(u core.PartialUpdate) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, u)
	})
	ft := NewFunctionTool("echo", "Echo", map[string]any{"type": "object"}, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		tc.Emit(core.UpdateToolOutput, "partial")
		return "done", nil
	})
	_, err := ft.Call(tc, map[string]any{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, core.UpdateToolOutput, got[0].Key)
}

func TestDefinitions(t *testing.T) {
	defs := Definitions([]Tool{sumTool()})
	require.Len(t, defs, 1)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "sum", defs[0].Function.Name)
	assert.Nil(t, Definitions(nil))
}

func TestRegistry_CreateTools(t *testing.T) {
	r := NewRegistry(sumTool())

	tools, err := r.CreateTools([]string{"sum"})
	require.NoError(t, err)
	require.Len(t, tools, 1)

	empty, err := r.CreateTools(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = r.CreateTools([]string{"sum", "missing"})
	assert.ErrorIs(t, err, core.ErrToolNotFound)
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestRegistry_RegisterAndNames(t *testing.T) {
	r := NewRegistry()
	r.Register(sumTool())
	r.Register(NewFunctionTool("abs", "Abs", nil, nil))
	assert.Equal(t, []string{"abs", "sum"}, r.Names())
	_, ok := r.Get("sum")
	assert.True(t, ok)
}

func TestChain(t *testing.T) {
	first := NewRegistry(NewFunctionTool("a", "first", nil, nil))
	second := NewRegistry(NewFunctionTool("a", "second", nil, nil), NewFunctionTool("b", "b", nil, nil))

	tools, err := Chain(first, nil, second).CreateTools([]string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "first", tools[0].Description())
	assert.Equal(t, "b", tools[1].Name())

	_, err = Chain(first).CreateTools([]string{"zzz"})
	assert.ErrorIs(t, err, core.ErrToolNotFound)
}

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
