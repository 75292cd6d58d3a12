package testutil

import (
	"context"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/beehive/platform"
)

// AgentFunc answers one prompt.
type AgentFunc func(ctx context.Context, prompt string) (string, error)

// Agent is a scripted platform agent.
type Agent struct {
	ID          string
	Description string
	Run         AgentFunc
}

// Echo returns an agent that answers with prefix followed by the prompt.
func Echo(id, description, prefix string) Agent {
	return Agent{
		ID:          id,
		Description: description,
		Run: func(_ context.Context, prompt string) (string, error) {
			return prefix + prompt, nil
		},
	}
}

// Upper returns an agent that answers with the prompt in upper case.
func Upper(id, description string) Agent {
	return Agent{
		ID:          id,
		Description: description,
		Run: func(_ context.Context, prompt string) (string, error) {
			return strings.ToUpper(prompt), nil
		},
	}
}

// NewPlatformServer exposes agents as tools taking a single prompt argument.
// Agent errors are reported as tool errors.
func NewPlatformServer(agents ...Agent) *server.MCPServer {
	s := server.NewMCPServer("beeai-platform", "test", server.WithToolCapabilities(false))
	for _, a := range agents {
		run := a.Run
		t := mcp.NewTool(a.ID,
			mcp.WithDescription(a.Description),
			mcp.WithString("prompt", mcp.Required()),
		)
		s.AddTool(t, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			prompt, err := req.RequireString("prompt")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			out, err := run(ctx, prompt)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(out), nil
		})
	}
	return s
}

// Dial connects to s in-process. The url argument is ignored.
func Dial(s *server.MCPServer) platform.DialFunc {
	return func(ctx context.Context, _ string, info mcp.Implementation) (platform.Client, error) {
		c, err := mcpclient.NewInProcessClient(s)
		if err != nil {
			return nil, fmt.Errorf("create in-process client: %w", err)
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("start in-process client: %w", err)
		}

		initReq := mcp.InitializeRequest{}
		initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		initReq.Params.ClientInfo = info
		if _, err := c.Initialize(ctx, initReq); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("initialize: %w", err)
		}
		return c, nil
	}
}
