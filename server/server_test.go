package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/engine"
	"github.com/hupe1980/beehive/model"
	"github.com/hupe1980/beehive/platform"
	"github.com/hupe1980/beehive/registry"
)

type fakeSupervisor struct {
	got    engine.Request
	deltas []string
	result *engine.Result
	err    error
}

func (f *fakeSupervisor) Run(_ context.Context, req engine.Request, onProgress func(core.ProgressNotification)) (*engine.Result, error) {
	f.got = req
	if req.ProgressToken != nil {
		for _, d := range f.deltas {
			onProgress(core.ProgressNotification{ProgressToken: req.ProgressToken, DeltaKey: core.UpdateFinalAnswer, DeltaValue: d})
		}
	}
	return f.result, f.err
}

type notification struct {
	method string
	params map[string]any
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (c *captureNotifier) Notify(_ context.Context, method string, params map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, notification{method: method, params: params})
	return nil
}

func callRequest(args map[string]any, token any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = ToolName
	req.Params.Arguments = args
	if token != nil {
		req.Params.Meta = &mcp.Meta{ProgressToken: token}
	}
	return req
}

func TestHandleSupervisor(t *testing.T) {
	tests := []struct {
		name         string
		args         map[string]any
		token        any
		wantAgents   []string
		wantNotifies int
	}{
		{
			name:         "progress token",
			args:         map[string]any{"text": "Summarize X", "availableAgents": []any{"Researcher"}},
			token:        "tok",
			wantAgents:   []string{"Researcher"},
			wantNotifies: 2,
		},
		{
			name:       "no token",
			args:       map[string]any{"text": "Summarize X", "availableAgents": []any{}},
			wantAgents: []string{},
		},
		{
			name:       "absent list",
			args:       map[string]any{"text": "Summarize X"},
			wantAgents: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sup := &fakeSupervisor{deltas: []string{"X ", "is short."}, result: &engine.Result{Text: "X is short.", Logs: []string{}}}
			notifier := &captureNotifier{}
			s := New(sup, func(o *Options) { o.Notifier = notifier })

			res, err := s.HandleSupervisor(context.Background(), callRequest(tt.args, tt.token))
			require.NoError(t, err)
			require.False(t, res.IsError)
			assert.Equal(t, map[string]any{"text": "X is short.", "logs": []string{}}, res.StructuredContent)

			assert.Equal(t, "Summarize X", sup.got.Text)
			assert.Equal(t, tt.wantAgents, sup.got.AvailableAgents)
			assert.Equal(t, tt.token, sup.got.ProgressToken)

			require.Len(t, notifier.sent, tt.wantNotifies)
			for i, n := range notifier.sent {
				assert.Equal(t, ProgressMethod, n.method)
				assert.Equal(t, tt.token, n.params["progressToken"])
				assert.Equal(t, i+1, n.params["progress"])
			}
		})
	}
}

func TestHandleSupervisor_Errors(t *testing.T) {
	t.Run("run failure", func(t *testing.T) {
		s := New(&fakeSupervisor{err: core.NewError("engine.Invoke", core.ErrConnection, "dial")})
		res, err := s.HandleSupervisor(context.Background(), callRequest(map[string]any{"text": "x"}, nil))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("bad agent list", func(t *testing.T) {
		sup := &fakeSupervisor{}
		s := New(sup)
		res, err := s.HandleSupervisor(context.Background(), callRequest(map[string]any{"text": "x", "availableAgents": []any{1}}, nil))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Empty(t, sup.got.Text)
	})
}

type emptyPlatform struct{}

func (emptyPlatform) Init(context.Context, []string, bool) error { return nil }

func (emptyPlatform) ListAgents(context.Context) ([]platform.RemoteAgent, error) { return nil, nil }

func (emptyPlatform) RunAgent(context.Context, string, string) (string, error) { return "", nil }

func TestHandleSupervisor_CancelMidStream(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.Enqueue(model.Turn{Text: "one two three four five"})
	models := model.NewRegistry()
	models.Register(string(core.KindSupervisor), llm)
	factory := registry.NewFactory(func(o *registry.FactoryOptions) {
		o.Models = models
		o.Platform = emptyPlatform{}
	})
	eng := engine.New(emptyPlatform{}, factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := &captureNotifier{}
	s := New(eng, func(o *Options) {
		o.Notifier = NotifierFunc(func(ctx context.Context, method string, params map[string]any) error {
			cancel()
			return notifier.Notify(ctx, method, params)
		})
	})

	res, err := s.HandleSupervisor(ctx, callRequest(map[string]any{"text": "count"}, "tok"))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, 1, notifier.sent[0].params["progress"])
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Zero(t, eng.ActiveInvocations())
}

func TestProgressParams(t *testing.T) {
	p := ProgressParams(core.ProgressNotification{ProgressToken: 7, DeltaKey: core.UpdateFinalAnswer, DeltaValue: "hi"}, 3)
	assert.Equal(t, map[string]any{
		"progressToken": 7,
		"progress":      3,
		"delta": map[string]any{
			"messages": []map[string]any{{"role": "assistant", "content": "hi"}},
		},
	}, p)
}

func TestClientNotifier_WithoutSession(t *testing.T) {
	err := ClientNotifier.Notify(context.Background(), ProgressMethod, nil)
	assert.Error(t, err)
}

func TestServer_InProcess(t *testing.T) {
	sup := &fakeSupervisor{result: &engine.Result{Text: "done"}}
	s := New(sup, func(o *Options) { o.Notifier = &captureNotifier{} })

	ctx := context.Background()
	c, err := mcpclient.NewInProcessClient(s.MCPServer())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	require.NoError(t, c.Start(ctx))

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "test", Version: "1.0.0"}
	info, err := c.Initialize(ctx, initReq)
	require.NoError(t, err)
	assert.Equal(t, DefaultName, info.ServerInfo.Name)

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)
	require.Len(t, tools.Tools, 1)
	assert.Equal(t, ToolName, tools.Tools[0].Name)
	assert.Equal(t, ToolDescription, tools.Tools[0].Description)

	res, err := c.CallTool(ctx, callRequest(map[string]any{"text": "task", "availableAgents": []string{"a"}}, nil))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	assert.Equal(t, "done", text.Text)
	assert.Equal(t, "task", sup.got.Text)
	assert.Equal(t, []string{"a"}, sup.got.AvailableAgents)
}

func TestNotifierFunc(t *testing.T) {
	want := errors.New("x")
	n := NotifierFunc(func(context.Context, string, map[string]any) error { return want })
	assert.ErrorIs(t, n.Notify(context.Background(), "m", nil), want)
}
