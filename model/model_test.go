package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/beehive/core"
)

func userReq(text string, stream bool) Request {
	return Request{Contents: []core.Content{core.NewTextContent("user", text)}, Stream: stream}
}

func TestMockModel_Fallbacks(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.AddResponse("ping", "pong")

	resp, err := Collect(context.Background(), m, userReq("ping", false), nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Content.Text())

	resp, err = Collect(context.Background(), m, userReq("other", false), nil)
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resp.Content.Text())
	assert.Len(t, m.Requests(), 2)
	assert.Equal(t, DefaultMaxTokens, m.Info().MaxTokens)
}

func TestMockModel_ScriptedTurns(t *testing.T) {
	m := NewMockModel("mock", "test")
	boom := errors.New("boom")
	m.Enqueue(
		Turn{ToolCalls: []core.FunctionCall{{Name: "list_agents", Arguments: "{}"}}},
		Turn{Err: boom},
		Turn{Text: "the final answer"},
	)

	resp, err := Collect(context.Background(), m, userReq("x", true), nil)
	require.NoError(t, err)
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_0", calls[0].ID)
	assert.Equal(t, "tool_calls", resp.FinishReason)

	_, err = Collect(context.Background(), m, userReq("x", true), nil)
	assert.ErrorIs(t, err, boom)

	var partials []string
	resp, err = Collect(context.Background(), m, userReq("x", true), func(r Response) {
		partials = append(partials, r.Content.Text())
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"the ", "final ", "answer"}, partials)
	assert.Equal(t, "the final answer", resp.Content.Text())
}

func TestMockModel_BlockHonoursContext(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.Enqueue(Turn{Text: "never", Block: make(chan struct{})})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Collect(ctx, m, userReq("x", false), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("supervisor")
	assert.Error(t, err)

	sup := NewMockModel("sup", "test")
	def := NewMockModel("def", "test")
	r.Register("supervisor", sup)
	r.Register(DefaultRole, def)

	got, err := r.Resolve("supervisor")
	require.NoError(t, err)
	assert.Same(t, sup, got)

	got, err = r.Resolve("operator")
	require.NoError(t, err)
	assert.Same(t, def, got)
	assert.Equal(t, []string{"default", "supervisor"}, r.Roles())

	var res Resolver = ResolverFunc(func(role string) (Model, error) { return sup, nil })
	got, err = res.Resolve("any")
	require.NoError(t, err)
	assert.Same(t, sup, got)
}

func TestBreakerModel_OpensAfterFailures(t *testing.T) {
	inner := NewMockModel("flaky", "test")
	boom := errors.New("provider down")
	inner.Enqueue(Turn{Err: boom}, Turn{Err: boom}, Turn{Text: "unreachable"})

	b := NewBreakerModel(inner, BreakerConfig{MaxFailures: 2, Timeout: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		_, err := Collect(context.Background(), b, userReq("x", false), nil)
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := Collect(context.Background(), b, userReq("x", false), nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, inner.Requests(), 2)
	assert.Equal(t, "flaky", b.Info().Name)
}

func TestBreakerModel_PassesThrough(t *testing.T) {
	inner := NewMockModel("ok", "test")
	inner.Enqueue(Turn{Text: "fine"})
	b := NewBreakerModel(inner, BreakerConfig{}, nil)

	resp, err := Collect(context.Background(), b, userReq("x", true), nil)
	require.NoError(t, err)
	assert.Equal(t, "fine", resp.Content.Text())
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestRateLimitedModel(t *testing.T) {
	inner := NewMockModel("rl", "test")
	assert.Same(t, Model(inner), NewRateLimitedModel(inner, RateLimitConfig{}))

	limited := NewRateLimitedModel(inner, RateLimitConfig{RequestsPerMinute: 1, Burst: 1})
	_, err := Collect(context.Background(), limited, userReq("first", false), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = Collect(ctx, limited, userReq("second", false), nil)
	assert.Error(t, err)
	assert.Len(t, inner.Requests(), 1)
}
