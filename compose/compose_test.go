package compose

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/beehive/core"
)

type runFunc func(ctx context.Context, agentType, prompt string, onDelta func(string)) (string, error)

func (f runFunc) RunAgentStream(ctx context.Context, agentType, prompt string, onDelta func(string)) (string, error) {
	return f(ctx, agentType, prompt, onDelta)
}

func cfg(agentType string) core.AgentConfig {
	return core.AgentConfig{AgentID: agentType, AgentKind: core.KindOperator, AgentType: agentType}
}

func fixedClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func TestPipeline_SubmitSequences(t *testing.T) {
	var calls []string
	runner := runFunc(func(_ context.Context, agentType, prompt string, onDelta func(string)) (string, error) {
		calls = append(calls, agentType+"<"+prompt)
		out := strings.ToUpper(prompt) + "!"
		onDelta(out[:2])
		onDelta(out[2:])
		return out, nil
	})
	p := New(runner, func(o *Options) { o.Now = fixedClock() })
	require.NoError(t, p.Add(cfg("first")))
	require.NoError(t, p.Add(cfg("second")))

	out, err := p.Submit(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "GO!!", out)
	assert.Equal(t, "GO!!", p.Result())
	assert.Equal(t, []string{"first<go", "second<GO!"}, calls)

	slots := p.Slots()
	require.Len(t, slots, 2)
	assert.Equal(t, []string{RunningLog, "GO", "!"}, slots[0].Logs)
	assert.Equal(t, []string{RunningLog, "GO", "!!"}, slots[1].Logs)
	for _, s := range slots {
		assert.False(t, s.IsPending)
		require.NotNil(t, s.Stats)
		require.NotNil(t, s.Stats.Start)
		require.NotNil(t, s.Stats.End)
		assert.True(t, s.Stats.End.After(*s.Stats.Start))
	}

	_, err = ulid.Parse(p.RunID())
	assert.NoError(t, err)
}

func TestPipeline_SettlesOnEveryPath(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		run     runFunc
		wantErr error
	}{
		{
			name: "success",
			run: func(context.Context, string, string, func(string)) (string, error) {
				return "ok", nil
			},
		},
		{
			name: "failure",
			run: func(context.Context, string, string, func(string)) (string, error) {
				return "", boom
			},
			wantErr: boom,
		},
		{
			name: "cancelled",
			run: func(context.Context, string, string, func(string)) (string, error) {
				return "", core.Cancelled("test", context.Canceled)
			},
			wantErr: core.ErrCancelled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.run)
			require.NoError(t, p.Add(cfg("a")))
			require.NoError(t, p.Add(cfg("b")))

			_, err := p.Submit(context.Background(), "in")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.False(t, p.Running())
			for _, s := range p.Slots() {
				assert.False(t, s.IsPending)
				require.NotNil(t, s.Stats)
				assert.NotNil(t, s.Stats.End)
			}
		})
	}
}

func TestPipeline_Cancel(t *testing.T) {
	started := make(chan struct{})
	runner := runFunc(func(ctx context.Context, _, _ string, onDelta func(string)) (string, error) {
		onDelta("partial")
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	p := New(runner)
	require.NoError(t, p.Add(cfg("slow")))
	assert.False(t, p.Cancel())

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), "x")
		done <- err
	}()

	<-started
	assert.True(t, p.Running())
	assert.ErrorIs(t, p.Add(cfg("late")), ErrRunInProgress)
	_, err := p.Submit(context.Background(), "again")
	assert.ErrorIs(t, err, ErrRunInProgress)

	assert.True(t, p.Cancel())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, core.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}

	slots := p.Slots()
	require.Len(t, slots, 1)
	assert.False(t, slots[0].IsPending)
	assert.Equal(t, []string{RunningLog, "partial"}, slots[0].Logs)

	// the next run is unaffected by the earlier cancel
	p2 := New(runFunc(func(context.Context, string, string, func(string)) (string, error) { return "fine", nil }))
	require.NoError(t, p2.Add(cfg("a")))
	out, err := p2.Submit(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "fine", out)
}

func TestPipeline_NoAgents(t *testing.T) {
	p := New(runFunc(func(context.Context, string, string, func(string)) (string, error) { return "", nil }))
	_, err := p.Submit(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoAgents)
}

func TestPipeline_ResetAndClear(t *testing.T) {
	p := New(runFunc(func(_ context.Context, _, _ string, onDelta func(string)) (string, error) {
		onDelta("out")
		return "out", nil
	}))
	require.NoError(t, p.Add(cfg("a")))
	require.NoError(t, p.Add(cfg("b")))
	_, err := p.Submit(context.Background(), "x")
	require.NoError(t, err)

	require.NoError(t, p.Reset())
	assert.Empty(t, p.Result())
	assert.Equal(t, []string{"a", "b"}, p.Agents())
	for _, s := range p.Slots() {
		assert.Nil(t, s.Logs)
		assert.Nil(t, s.Stats)
	}

	require.NoError(t, p.Remove(0))
	assert.Equal(t, []string{"b"}, p.Agents())
	assert.Error(t, p.Remove(3))

	require.NoError(t, p.Clear())
	assert.Empty(t, p.Agents())
}

func TestStats_Elapsed(t *testing.T) {
	start := time.Unix(100, 0)
	end := start.Add(3 * time.Second)
	assert.Equal(t, time.Duration(0), Stats{}.Elapsed(end))
	assert.Equal(t, 3*time.Second, Stats{Start: &start, End: &end}.Elapsed(time.Unix(500, 0)))
	assert.Equal(t, 5*time.Second, Stats{Start: &start}.Elapsed(start.Add(5*time.Second)))
}
