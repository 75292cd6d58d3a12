package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/memory"
	"github.com/hupe1980/beehive/model"
	"github.com/hupe1980/beehive/tool"
)

func TestInstructions(t *testing.T) {
	tests := []struct {
		name       string
		sw         core.Switches
		contains   []string
		notContain []string
	}{
		{
			name:       "single shot",
			sw:         core.SingleShotSwitches(),
			contains:   []string{"(supervisor)", "list_agents", "run_agent", "The set of agents is fixed."},
			notContain: []string{"create_agent_config", "restored"},
		},
		{
			name:       "mutable configs",
			sw:         core.Switches{AgentRegistry: core.AgentRegistrySwitches{MutableAgentConfigs: true}},
			contains:   []string{"create_agent_config", "update_agent_config"},
			notContain: []string{"The set of agents is fixed."},
		},
		{
			name:     "restoration",
			sw:       core.Switches{TaskManager: core.TaskManagerSwitches{Restoration: true}},
			contains: []string{"restored from a previous session"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := Instructions("supervisor", tt.sw)
			for _, s := range tt.contains {
				assert.Contains(t, text, s)
			}
			for _, s := range tt.notContain {
				assert.NotContains(t, text, s)
			}
		})
	}
}

func TestInstructions_Pure(t *testing.T) {
	sw := core.SingleShotSwitches()
	assert.Equal(t, Instructions("a", sw), Instructions("a", sw))
	assert.NotEqual(t, Instructions("a", sw), Instructions("b", sw))
}

func TestReasoningAgent_Defaults(t *testing.T) {
	llm := model.NewMockModel("mock", "test").WithMaxTokens(1234)
	a := NewReasoningAgent("helper", llm)

	assert.Equal(t, "helper", a.Name())
	assert.Equal(t, core.AgentInfo{Name: "helper", Type: "helper"}, a.Info())
	assert.Equal(t, 1234, a.Memory().MaxTokens())
	assert.True(t, a.IsStreamingEnabled())
	assert.Contains(t, a.Instructions(), "helper")
	assert.Empty(t, a.ToolNames())
}

func TestReasoningAgent_ZeroBudgetFallsBack(t *testing.T) {
	llm := model.NewMockModel("mock", "test").WithMaxTokens(0)
	a := NewReasoningAgent("helper", llm)
	assert.Equal(t, model.DefaultMaxTokens, a.Memory().MaxTokens())
}

func TestReasoningAgent_Run(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.Enqueue(
		model.Turn{ToolCalls: []core.FunctionCall{{Name: "shout", Arguments: `{"text":"hi"}`}}},
		model.Turn{Text: "HI"},
	)
	shout := tool.NewFunctionTool("shout", "Uppercase", map[string]any{
		"type":       "object",
		"properties": map[string]any{"text": map[string]any{"type": "string"}},
	}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return "HI", nil
	})
	mem := memory.NewTokenMemory(0)

	a := NewReasoningAgent("supervisor", llm, func(o *ReasoningAgentOptions) {
		o.Type = "supervisor"
		o.Instructions = Instructions("supervisor", core.SingleShotSwitches())
		o.Tools = []tool.Tool{shout}
		o.Memory = mem
	})
	assert.Equal(t, []string{"shout"}, a.ToolNames())

	var updates []core.PartialUpdate
	answer, err := a.Run(context.Background(), "say hi loudly", core.OperatorPolicy, func(u core.PartialUpdate) {
		updates = append(updates, u)
	})
	require.NoError(t, err)
	assert.Equal(t, "HI", answer)
	assert.NotEmpty(t, updates)
	assert.Equal(t, 4, mem.Len())
	assert.Contains(t, llm.Requests()[0].Instructions, "(supervisor)")

	a.Reset()
	assert.Equal(t, 0, mem.Len())
}
