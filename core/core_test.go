package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter(t *testing.T) {
	t.Run("bounded", func(t *testing.T) {
		l := NewLimiter("retries", 2)
		assert.NoError(t, l.Increment())
		assert.Equal(t, 1, l.Remaining())
		assert.NoError(t, l.Increment())
		assert.Equal(t, 0, l.Remaining())
		err := l.Increment()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeded max retries: 2")
		assert.Equal(t, 3, l.Count())
		assert.Equal(t, 0, l.Remaining())
	})

	t.Run("zero allows nothing", func(t *testing.T) {
		l := NewLimiter("retries", 0)
		assert.Error(t, l.Increment())
	})

	t.Run("negative is unlimited", func(t *testing.T) {
		l := NewLimiter("calls", -1)
		for i := 0; i < 100; i++ {
			require.NoError(t, l.Increment())
		}
		assert.Equal(t, -1, l.Remaining())
	})

	t.Run("reset", func(t *testing.T) {
		l := NewLimiter("retries", 1)
		require.NoError(t, l.Increment())
		l.Reset()
		assert.Equal(t, 0, l.Count())
		assert.NoError(t, l.Increment())
	})

	t.Run("concurrent", func(t *testing.T) {
		l := NewLimiter("calls", -1)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = l.Increment()
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, l.Count())
	})
}

func TestExecutionPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  ExecutionPolicy
		wantErr bool
	}{
		{"supervisor", SupervisorPolicy, false},
		{"operator", OperatorPolicy, false},
		{"no retries", ExecutionPolicy{MaxIterations: 1}, false},
		{"zero iterations", ExecutionPolicy{MaxIterations: 0}, true},
		{"negative retries", ExecutionPolicy{MaxIterations: 1, MaxRetriesPerStep: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPresetPolicies(t *testing.T) {
	assert.Equal(t, ExecutionPolicy{MaxIterations: 100, MaxRetriesPerStep: 2, TotalMaxRetries: 10}, SupervisorPolicy)
	assert.Equal(t, ExecutionPolicy{MaxIterations: 8, MaxRetriesPerStep: 2, TotalMaxRetries: 10}, OperatorPolicy)
}

func TestErrorWrapping(t *testing.T) {
	err := NewError("platform.RunAgent", ErrUnknownAgent, "agent writer is not registered in the platform")
	assert.True(t, errors.Is(err, ErrUnknownAgent))
	assert.Equal(t, "platform.RunAgent: agent writer is not registered in the platform: unknown agent", err.Error())

	wrapped := WrapOp("registry.Run", err)
	assert.True(t, errors.Is(wrapped, ErrUnknownAgent))
	assert.Nil(t, WrapOp("noop", nil))

	plain := NewError("engine.Invoke", ErrNotReady, "")
	assert.Equal(t, "engine.Invoke: not ready", plain.Error())
}

func TestCancelled(t *testing.T) {
	err := Cancelled("flow.Run", context.Canceled)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, IsCancellation(err))
	assert.True(t, IsCancellation(context.DeadlineExceeded))
	assert.False(t, IsCancellation(ErrRunExhausted))
}

func TestAgentConfig(t *testing.T) {
	cfg := AgentConfig{AgentType: "researcher", AgentKind: KindOperator, Tools: []string{"a"}}
	require.NoError(t, cfg.Validate())

	cp := cfg.Clone()
	cp.Tools[0] = "b"
	assert.Equal(t, "a", cfg.Tools[0])

	assert.Error(t, AgentConfig{AgentKind: KindOperator}.Validate())
	assert.Error(t, AgentConfig{AgentType: "x"}.Validate())
	assert.Error(t, AgentConfig{AgentType: "x", AgentKind: KindOperator, MaxPoolSize: -1}.Validate())
}

func TestSingleShotSwitches(t *testing.T) {
	sw := SingleShotSwitches()
	assert.False(t, sw.AgentRegistry.MutableAgentConfigs)
	assert.False(t, sw.AgentRegistry.Restoration)
	assert.False(t, sw.TaskManager.Restoration)
}

func TestContentHelpers(t *testing.T) {
	c := Content{Role: "assistant", Parts: []Part{
		TextPart{Text: "hello "},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "1", Name: "list_agents"}},
		TextPart{Text: "world"},
		FunctionResponsePart{FunctionResponse: FunctionResponse{ID: "1", Name: "list_agents"}},
	}}
	assert.Equal(t, "hello world", c.Text())
	require.Len(t, c.FunctionCalls(), 1)
	assert.Equal(t, "list_agents", c.FunctionCalls()[0].Name)
	require.Len(t, c.FunctionResponses(), 1)
	assert.Equal(t, "user", NewTextContent("user", "hi").Role)
}

func TestUpdateFuncEmit(t *testing.T) {
	var got []PartialUpdate
	f := UpdateFunc(func(u PartialUpdate) { got = append(got, u) })
	f.Emit(UpdateFinalAnswer, "a")
	f.Emit(UpdateThought, "b")
	assert.Equal(t, []PartialUpdate{{Key: "final_answer", Value: "a"}, {Key: "thought", Value: "b"}}, got)

	var nilFunc UpdateFunc
	assert.NotPanics(t, func() { nilFunc.Emit("x", "y") })
}

func TestToolContext(t *testing.T) {
	var got []PartialUpdate
	tc := NewToolContext(context.Background(), "fc-1", AgentInfo{Name: "supervisor", Type: "supervisor"}, nil)
	assert.Equal(t, "fc-1", tc.FunctionCallID())
	assert.Equal(t, "supervisor", tc.AgentName())
	assert.NotNil(t, tc.Logger())
	tc.Emit("ignored", "x")

	tc2 := tc.WithUpdates(func(u PartialUpdate) { got = append(got, u) })
	tc2.Emit(UpdateToolOutput, "done")
	assert.Len(t, got, 1)
	assert.NotEmpty(t, NewID())
}
