// Package platform manages the connection to the remote agent platform.
//
// The platform publishes its agents over MCP: every agent is an MCP tool
// whose name is the agent id, listing agents is tools/list and running one
// is tools/call with a {"prompt": ...} argument. A Manager owns exactly one
// client session and filters the catalogue through an allow-list.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/internal/tracer"
	"github.com/hupe1980/beehive/logging"
)

// DefaultURL is the SSE endpoint of a locally running platform.
const DefaultURL = "http://127.0.0.1:8333/mcp/sse"

// DefaultRunTimeout bounds a single remote run. It is effectively unbounded.
const DefaultRunTimeout = 10_000_000 * time.Millisecond

// Client is the subset of an MCP client session used by the Manager.
type Client interface {
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// DialFunc opens and initializes a client session.
type DialFunc func(ctx context.Context, url string, info mcp.Implementation) (Client, error)

// RemoteAgent is one entry of the platform catalogue.
type RemoteAgent struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Options configures a Manager.
type Options struct {
	URL           string
	ClientName    string
	ClientVersion string
	RunTimeout    time.Duration
	Dial          DialFunc
	Logger        logging.Logger
}

// Manager is the single connection to the platform. It is safe for
// concurrent use; concurrent runs share the session.
type Manager struct {
	opts Options

	connectMu   sync.Mutex
	mu          sync.RWMutex
	client      Client
	initialized bool
	connected   bool
	allowed     map[string]struct{} // nil: no filter
}

// New creates a Manager. Nothing is dialed until Connect.
func New(optFns ...func(o *Options)) *Manager {
	opts := Options{
		URL:           DefaultURL,
		ClientName:    "supervisor-agent",
		ClientVersion: "1.0.0",
		RunTimeout:    DefaultRunTimeout,
		Dial:          DialSSE,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Manager{opts: opts}
}

// DialSSE connects to url with the mcp-go SSE transport and performs the
// MCP initialize handshake.
func DialSSE(ctx context.Context, url string, info mcp.Implementation) (Client, error) {
	c, err := mcpclient.NewSSEMCPClient(url)
	if err != nil {
		return nil, fmt.Errorf("create sse client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("start sse client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = info
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, core.WrapOp("initialize", err)
	}
	return c, nil
}

// URL returns the platform endpoint.
func (m *Manager) URL() string { return m.opts.URL }

// Init stores the allow-list and marks the manager initialized. A nil list
// disables filtering; a non-nil empty list filters out every agent. Later
// calls replace the list. With autoConnect the manager connects right away.
func (m *Manager) Init(ctx context.Context, allowed []string, autoConnect bool) error {
	m.mu.Lock()
	if allowed == nil {
		m.allowed = nil
	} else {
		m.allowed = make(map[string]struct{}, len(allowed))
		for _, a := range allowed {
			m.allowed[strings.ToLower(a)] = struct{}{}
		}
	}
	m.initialized = true
	m.mu.Unlock()

	m.opts.Logger.Debug("platform.init", "allowed", len(allowed), "filter", allowed != nil, "auto_connect", autoConnect)

	if autoConnect {
		return m.Connect(ctx)
	}
	return nil
}

// Connect opens the session. It is a no-op when already connected.
func (m *Manager) Connect(ctx context.Context) error {
	const op = "platform.Connect"

	// Concurrent Connect calls dial once. The state lock is not held while
	// dialing, so readers are not blocked by a slow handshake.
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.opts.Logger.Info("platform.connect.start", "url", m.opts.URL)

	m.mu.RLock()
	connected, initialized := m.connected, m.initialized
	m.mu.RUnlock()

	if connected {
		m.opts.Logger.Info("platform.connect.already_connected", "url", m.opts.URL)
		return nil
	}
	if !initialized {
		return core.NewError(op, core.ErrConnection, "platform connection was not initialized")
	}

	c, err := m.opts.Dial(ctx, m.opts.URL, mcp.Implementation{
		Name:    m.opts.ClientName,
		Version: m.opts.ClientVersion,
	})
	if err != nil {
		m.opts.Logger.Error("platform.connect.error", "url", m.opts.URL, "error", err.Error())
		return core.NewError(op, fmt.Errorf("%w: %w", core.ErrConnection, err), fmt.Sprintf("can't connect to platform on %s", m.opts.URL))
	}

	m.mu.Lock()
	m.client = c
	m.connected = true
	m.mu.Unlock()

	m.opts.Logger.Info("platform.connect.done", "url", m.opts.URL)
	return nil
}

// Initialized reports whether Init ran.
func (m *Manager) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// Connected reports whether a session is open.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// session returns the client when the manager is ready.
func (m *Manager) session(op string) (Client, map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return nil, nil, core.NewError(op, core.ErrNotReady, "platform connection isn't initialized")
	}
	if !m.connected {
		return nil, nil, core.NewError(op, core.ErrNotReady, "platform isn't connected")
	}
	return m.client, m.allowed, nil
}

// ListAgents returns the remote catalogue filtered by the allow-list.
func (m *Manager) ListAgents(ctx context.Context) ([]RemoteAgent, error) {
	const op = "platform.ListAgents"

	c, allowed, err := m.session(op)
	if err != nil {
		return nil, err
	}

	m.opts.Logger.Debug("platform.list_agents")

	var (
		agents []RemoteAgent
		req    mcp.ListToolsRequest
	)
	for {
		res, err := c.ListTools(ctx, req)
		if err != nil {
			return nil, core.WrapOp(op, err)
		}
		for _, t := range res.Tools {
			if allowed != nil {
				if _, ok := allowed[strings.ToLower(t.Name)]; !ok {
					continue
				}
			}
			agents = append(agents, RemoteAgent{ID: t.Name, Description: t.Description})
		}
		if res.NextCursor == "" || res.NextCursor == req.Params.Cursor {
			break
		}
		req.Params.Cursor = res.NextCursor
	}

	return agents, nil
}

// RunAgent runs the remote agent id with prompt and returns its text output.
// The id must be present in the current filtered catalogue.
func (m *Manager) RunAgent(ctx context.Context, id, prompt string) (result string, err error) {
	const op = "platform.RunAgent"

	ctx, span := tracer.StartSpan(ctx, "platform.run_agent")
	span.SetAttributes(tracer.StringAttr("agent.id", id), tracer.IntAttr("prompt.length", len(prompt)))
	defer func() { tracer.End(span, err) }()

	m.opts.Logger.Info("platform.run_agent.start", "agent", id, "prompt_length", len(prompt))

	c, _, err := m.session(op)
	if err != nil {
		return "", err
	}

	agents, err := m.ListAgents(ctx)
	if err != nil {
		return "", err
	}
	found := false
	for _, a := range agents {
		if a.ID == id {
			found = true
			break
		}
	}
	if !found {
		return "", core.NewError(op, core.ErrUnknownAgent, fmt.Sprintf("agent %s is not registered in the platform", id))
	}

	runCtx := ctx
	if m.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.opts.RunTimeout)
		defer cancel()
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = id
	req.Params.Arguments = map[string]any{"prompt": prompt}

	start := time.Now()
	res, err := c.CallTool(runCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", core.Cancelled(op, ctx.Err())
		}
		m.opts.Logger.Error("platform.run_agent.error", "agent", id, "error", err.Error())
		return "", core.WrapOp(op, err)
	}

	text := resultText(res)
	if res.IsError {
		m.opts.Logger.Warn("platform.run_agent.failed", "agent", id, "output", text)
		return "", core.NewError(op, fmt.Errorf("remote agent %s failed", id), text)
	}

	m.opts.Logger.Info("platform.run_agent.done", "agent", id, "duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

// Close ends the session. The manager can be connected again afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	m.connected = false
	return err
}

// resultText joins text contents. When the result carries no text content,
// a structured {"text": ...} payload is used instead.
func resultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}

	switch sc := res.StructuredContent.(type) {
	case nil:
		return ""
	case map[string]any:
		if text, ok := sc["text"]; ok {
			return fmt.Sprint(text)
		}
	}
	if data, err := json.Marshal(res.StructuredContent); err == nil {
		return string(data)
	}
	return ""
}
