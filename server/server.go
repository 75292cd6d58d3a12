// Package server exposes the supervisor as an MCP tool. A task arrives as a
// tools/call of "supervisor"; final answer deltas are pushed back as progress
// notifications when the caller supplied a progress token.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/engine"
	"github.com/hupe1980/beehive/logging"
)

const (
	// DefaultName is the MCP server name announced to clients.
	DefaultName = "beeai-supervisor"
	// ToolName is the name of the supervisor tool.
	ToolName = "supervisor"
	// ProgressMethod is the notification method used for progress.
	ProgressMethod = "notifications/progress"
)

// ToolDescription is shown to clients choosing the supervisor.
const ToolDescription = "A supervisor agent that autonomously decomposes complex tasks, assigns them to the most suitable agents, " +
	"and orchestrates execution within a multi-agent system. It iteratively evaluates results, determines follow-up tasks, " +
	"and dynamically adapts workflows until an optimal solution is reached before responding to the user."

// Supervisor runs one task to completion. *engine.Engine implements it.
type Supervisor interface {
	Run(ctx context.Context, req engine.Request, onProgress func(core.ProgressNotification)) (*engine.Result, error)
}

// Notifier delivers a notification to the client of the current request.
type Notifier interface {
	Notify(ctx context.Context, method string, params map[string]any) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, method string, params map[string]any) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, method string, params map[string]any) error {
	return f(ctx, method, params)
}

// ClientNotifier sends notifications through the MCP session bound to ctx.
var ClientNotifier Notifier = NotifierFunc(func(ctx context.Context, method string, params map[string]any) error {
	srv := mcpserver.ServerFromContext(ctx)
	if srv == nil {
		return errors.New("no mcp server in context")
	}
	return srv.SendNotificationToClient(ctx, method, params)
})

// Options configures a Server.
type Options struct {
	Name     string
	Version  string
	Notifier Notifier
	// BaseURL is advertised by the SSE transport.
	BaseURL string
	// ShutdownTimeout bounds the graceful shutdown of ServeSSE.
	ShutdownTimeout time.Duration
	Logger          logging.Logger
}

// Server is the inbound MCP surface of beehive.
type Server struct {
	supervisor Supervisor
	opts       Options
	mcp        *mcpserver.MCPServer
}

// New creates a Server with the supervisor tool registered.
func New(supervisor Supervisor, optFns ...func(o *Options)) *Server {
	opts := Options{
		Name:            DefaultName,
		Version:         "dev",
		Notifier:        ClientNotifier,
		ShutdownTimeout: 5 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Notifier == nil {
		opts.Notifier = ClientNotifier
	}

	s := &Server{
		supervisor: supervisor,
		opts:       opts,
		mcp:        mcpserver.NewMCPServer(opts.Name, opts.Version, mcpserver.WithToolCapabilities(false)),
	}
	s.mcp.AddTool(SupervisorTool(), s.HandleSupervisor)
	return s
}

// SupervisorTool returns the tool declaration of the supervisor.
func SupervisorTool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription(ToolDescription),
		mcp.WithString("text", mcp.Required(), mcp.Description("The task for the supervisor")),
		mcp.WithArray("availableAgents",
			mcp.Required(),
			mcp.Description("Names of the platform agents the supervisor may use"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer { return s.mcp }

// HandleSupervisor is the tools/call handler of the supervisor tool.
// Failures are returned as tool error results.
func (s *Server) HandleSupervisor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	text, _ := args["text"].(string)
	available, err := stringList(args["availableAgents"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var token any
	if req.Params.Meta != nil {
		token = req.Params.Meta.ProgressToken
	}

	s.opts.Logger.Info("server.supervisor.start", "agents", len(available), "progress", token != nil)

	var (
		mu       sync.Mutex
		progress int
	)
	result, err := s.supervisor.Run(ctx, engine.Request{
		Text:            text,
		AvailableAgents: available,
		ProgressToken:   token,
	}, func(n core.ProgressNotification) {
		if ctx.Err() != nil {
			return
		}
		mu.Lock()
		progress++
		p := progress
		mu.Unlock()
		if nErr := s.opts.Notifier.Notify(ctx, ProgressMethod, ProgressParams(n, p)); nErr != nil {
			s.opts.Logger.Warn("server.progress.error", "error", nErr.Error())
		}
	})
	if err != nil {
		s.opts.Logger.Error("server.supervisor.error", "error", err.Error())
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.opts.Logger.Info("server.supervisor.done", "output_length", len(result.Text))
	logs := result.Logs
	if logs == nil {
		logs = []string{}
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.NewTextContent(result.Text)},
		StructuredContent: map[string]any{"text": result.Text, "logs": logs},
	}, nil
}

// ProgressParams renders a progress notification as MCP progress params
// carrying the delta as an assistant message.
func ProgressParams(n core.ProgressNotification, progress int) map[string]any {
	return map[string]any{
		"progressToken": n.ProgressToken,
		"progress":      progress,
		"delta": map[string]any{
			"messages": []map[string]any{{"role": "assistant", "content": n.DeltaValue}},
		},
	}
}

// stringList keeps the difference between an absent list (nil) and an
// empty one.
func stringList(v any) ([]string, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string{}, list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("availableAgents[%d]: expected string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("availableAgents: expected array, got %T", v)
	}
}

// ServeSSE serves the MCP server over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	var sseOpts []mcpserver.SSEOption
	if s.opts.BaseURL != "" {
		sseOpts = append(sseOpts, mcpserver.WithBaseURL(s.opts.BaseURL))
	}
	sse := mcpserver.NewSSEServer(s.mcp, sseOpts...)

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("server.sse.listen", "addr", addr)
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		s.opts.Logger.Info("server.sse.shutdown", "addr", addr)
		return sse.Shutdown(shutdownCtx)
	}
}
