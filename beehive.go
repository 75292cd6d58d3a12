// Package beehive wires the platform connection, the agent factory and the
// supervisor engine into a single entry point. Most applications:
//  1. Create a Hive via New, supplying the language models per role
//  2. Run (or Invoke) a supervisor request, optionally restricted to an
//     allow-list of platform agents
//  3. Close the Hive to drop the platform session
//
// Everything below the Hive stays reachable through its accessors for
// callers that need finer control.
package beehive

import (
	"context"
	"time"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/engine"
	"github.com/hupe1980/beehive/logging"
	"github.com/hupe1980/beehive/memory"
	"github.com/hupe1980/beehive/model"
	"github.com/hupe1980/beehive/platform"
	"github.com/hupe1980/beehive/registry"
)

// Options configures a Hive.
type Options struct {
	// Models resolves the model of each local agent kind.
	Models model.Resolver
	// Counter sizes local agent memories. Defaults to memory.ApproxCounter.
	Counter memory.TokenCounter

	// PlatformURL is the SSE endpoint of the agent platform.
	PlatformURL string
	// ClientName and ClientVersion identify the hive during the MCP handshake.
	ClientName    string
	ClientVersion string
	// RunTimeout bounds one remote agent run.
	RunTimeout time.Duration
	// Dial overrides the platform transport, e.g. for in-process servers.
	Dial platform.DialFunc

	SupervisorID string
	// Policy bounds supervisor runs. Local agents started by the supervisor
	// keep the operator policy.
	Policy           core.ExecutionPolicy
	OperatorPoolSize int
	// Fixtures are extra agent configs registered on every invocation.
	Fixtures  []core.AgentConfig
	Callbacks []engine.Callback

	Logger logging.Logger
}

// Hive is the assembled supervisor.
type Hive struct {
	platform *platform.Manager
	factory  *registry.Factory
	engine   *engine.Engine
}

// New assembles a Hive. Nothing is dialed until the first invocation.
func New(optFns ...func(o *Options)) *Hive {
	opts := Options{
		Counter:          memory.ApproxCounter{},
		PlatformURL:      platform.DefaultURL,
		SupervisorID:     engine.DefaultSupervisorID,
		Policy:           core.SupervisorPolicy,
		OperatorPoolSize: engine.DefaultOperatorPoolSize,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Models == nil {
		opts.Models = model.NewRegistry()
	}
	if opts.Counter == nil {
		opts.Counter = memory.ApproxCounter{}
	}
	if opts.SupervisorID == "" {
		opts.SupervisorID = engine.DefaultSupervisorID
	}
	if opts.Policy.MaxIterations <= 0 {
		opts.Policy = core.SupervisorPolicy
	}
	if opts.OperatorPoolSize <= 0 {
		opts.OperatorPoolSize = engine.DefaultOperatorPoolSize
	}

	manager := platform.New(func(o *platform.Options) {
		o.URL = opts.PlatformURL
		if opts.ClientName != "" {
			o.ClientName = opts.ClientName
		}
		if opts.ClientVersion != "" {
			o.ClientVersion = opts.ClientVersion
		}
		if opts.RunTimeout > 0 {
			o.RunTimeout = opts.RunTimeout
		}
		if opts.Dial != nil {
			o.Dial = opts.Dial
		}
		o.Logger = logging.WithComponent(opts.Logger, "platform")
	})

	factory := registry.NewFactory(func(o *registry.FactoryOptions) {
		o.Models = opts.Models
		o.Platform = manager
		o.Counter = opts.Counter
		o.Logger = logging.WithComponent(opts.Logger, "registry")
	})

	eng := engine.New(manager, factory, func(o *engine.Options) {
		o.SupervisorID = opts.SupervisorID
		o.Policy = opts.Policy
		o.OperatorPoolSize = opts.OperatorPoolSize
		o.Fixtures = opts.Fixtures
		o.Callbacks = opts.Callbacks
		o.Logger = logging.WithComponent(opts.Logger, "engine")
	})

	return &Hive{platform: manager, factory: factory, engine: eng}
}

// Run executes one supervisor request and waits for the answer.
func (h *Hive) Run(ctx context.Context, req engine.Request, onProgress func(core.ProgressNotification)) (*engine.Result, error) {
	return h.engine.Run(ctx, req, onProgress)
}

// Invoke starts a supervisor request asynchronously.
func (h *Hive) Invoke(ctx context.Context, req engine.Request) (string, <-chan core.ProgressNotification, <-chan engine.Completion, error) {
	return h.engine.Invoke(ctx, req)
}

// Stop cancels a running invocation.
func (h *Hive) Stop(invocationID string) error { return h.engine.Stop(invocationID) }

// Platform returns the platform connection.
func (h *Hive) Platform() *platform.Manager { return h.platform }

// Factory returns the agent factory.
func (h *Hive) Factory() *registry.Factory { return h.factory }

// Engine returns the supervisor engine.
func (h *Hive) Engine() *engine.Engine { return h.engine }

// Close drops the platform session.
func (h *Hive) Close() error { return h.platform.Close() }
