package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/logging"
	"github.com/hupe1980/beehive/tool"
)

// NotUsed is the instruction placeholder of operator configs.
const NotUsed = "Not used"

// DefaultMaxPoolSize applies when a config leaves MaxPoolSize at zero.
const DefaultMaxPoolSize = 1

// ErrImmutableConfigs is returned when a config change is attempted while
// mutable agent configs are switched off.
var ErrImmutableConfigs = errors.New("agent configs are immutable")

// Options configures a Registry.
type Options struct {
	Logger logging.Logger
}

type pool struct {
	cfg  core.AgentConfig
	idle []Handle
	sem  chan struct{}
}

func newPool(cfg core.AgentConfig) *pool {
	size := cfg.MaxPoolSize
	if size <= 0 {
		size = DefaultMaxPoolSize
	}
	return &pool{cfg: cfg, sem: make(chan struct{}, size)}
}

// Registry holds agent configs and pools their handles per agent type.
type Registry struct {
	factory *Factory
	tools   tool.Factory
	sw      core.Switches
	logger  logging.Logger

	mu    sync.Mutex
	pools map[string]*pool
	order []string
}

// New creates a Registry. tools resolves the tool names of local agents.
func New(factory *Factory, tools tool.Factory, sw core.Switches, optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Registry{
		factory: factory,
		tools:   tools,
		sw:      sw,
		logger:  opts.Logger,
		pools:   make(map[string]*pool),
	}
}

// Switches returns the feature switches the registry was built with.
func (r *Registry) Switches() core.Switches { return r.sw }

// Register adds cfg. A second registration of the same agent type fails
// with core.ErrAgentExists unless mutable configs are on, in which case the
// config is replaced and its pooled handles are dropped. With AutoPopulate
// the pool is filled right away.
func (r *Registry) Register(cfg core.AgentConfig) error {
	const op = "registry.Register"

	if err := cfg.Validate(); err != nil {
		return core.WrapOp(op, err)
	}
	cfg = cfg.Clone()

	if _, exists := r.Config(cfg.AgentType); exists && !r.sw.AgentRegistry.MutableAgentConfigs {
		return core.NewError(op, core.ErrAgentExists, fmt.Sprintf("agent type %q", cfg.AgentType))
	}

	p := newPool(cfg)
	if cfg.AutoPopulate {
		for i := 0; i < cap(p.sem); i++ {
			h, err := r.factory.CreateAgent(cfg, r.tools, r.sw)
			if err != nil {
				return core.WrapOp(op, err)
			}
			p.idle = append(p.idle, h)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pools[cfg.AgentType]; exists {
		if !r.sw.AgentRegistry.MutableAgentConfigs {
			return core.NewError(op, core.ErrAgentExists, fmt.Sprintf("agent type %q", cfg.AgentType))
		}
	} else {
		r.order = append(r.order, cfg.AgentType)
	}
	r.pools[cfg.AgentType] = p

	r.logger.Info("registry.agent.registered", "type", cfg.AgentType, "kind", cfg.AgentKind, "pool_size", cap(p.sem), "populated", len(p.idle))
	return nil
}

// RegisterAll registers every config in order and stops at the first error.
func (r *Registry) RegisterAll(cfgs ...core.AgentConfig) error {
	for _, cfg := range cfgs {
		if err := r.Register(cfg); err != nil {
			return err
		}
	}
	return nil
}

// Update replaces the config of an existing agent type. It requires mutable
// agent configs.
func (r *Registry) Update(cfg core.AgentConfig) error {
	const op = "registry.Update"

	if !r.sw.AgentRegistry.MutableAgentConfigs {
		return core.NewError(op, ErrImmutableConfigs, fmt.Sprintf("agent type %q", cfg.AgentType))
	}
	if _, ok := r.Config(cfg.AgentType); !ok {
		return core.NewError(op, core.ErrUnknownAgent, fmt.Sprintf("agent type %q", cfg.AgentType))
	}
	return r.Register(cfg)
}

// Configs returns the registered configs in registration order.
func (r *Registry) Configs() []core.AgentConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.AgentConfig, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.pools[t].cfg.Clone())
	}
	return out
}

// Config returns the config of agentType.
func (r *Registry) Config(agentType string) (core.AgentConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[agentType]
	if !ok {
		return core.AgentConfig{}, false
	}
	return p.cfg.Clone(), true
}

// Acquire returns a handle for agentType and a release func that must be
// called once the handle is no longer used. At most MaxPoolSize handles of
// a type are in use at once; Acquire blocks until one is free or ctx ends.
func (r *Registry) Acquire(ctx context.Context, agentType string) (Handle, func(), error) {
	const op = "registry.Acquire"

	r.mu.Lock()
	p, ok := r.pools[agentType]
	r.mu.Unlock()
	if !ok {
		return nil, nil, core.NewError(op, core.ErrUnknownAgent, fmt.Sprintf("agent type %q is not registered", agentType))
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, core.Cancelled(op, ctx.Err())
	}

	r.mu.Lock()
	var h Handle
	if n := len(p.idle); n > 0 {
		h = p.idle[n-1]
		p.idle = p.idle[:n-1]
	}
	r.mu.Unlock()

	if h == nil {
		var err error
		h, err = r.factory.CreateAgent(p.cfg, r.tools, r.sw)
		if err != nil {
			<-p.sem
			return nil, nil, core.WrapOp(op, err)
		}
		r.logger.Debug("registry.pool.created", "type", agentType)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			if r.pools[agentType] == p {
				p.idle = append(p.idle, h)
			}
			r.mu.Unlock()
			<-p.sem
		})
	}
	return h, release, nil
}

// Run runs agentType with prompt on a pooled handle.
func (r *Registry) Run(ctx context.Context, agentType, prompt string) (string, error) {
	return r.RunAgentStream(ctx, agentType, prompt, nil)
}

// RunAgentStream runs agentType with prompt and passes every final answer
// delta to onDelta.
func (r *Registry) RunAgentStream(ctx context.Context, agentType, prompt string, onDelta func(string)) (string, error) {
	h, release, err := r.Acquire(ctx, agentType)
	if err != nil {
		return "", err
	}
	defer release()

	r.logger.Info("registry.run.start", "type", agentType)

	out, err := r.factory.RunAgentStream(ctx, h, prompt, func(u core.PartialUpdate) {
		if onDelta != nil && u.Key == core.UpdateFinalAnswer {
			onDelta(u.Value)
		}
	})
	if err != nil {
		r.logger.Warn("registry.run.error", "type", agentType, "error", err.Error())
		return "", err
	}

	r.logger.Info("registry.run.done", "type", agentType, "output_length", len(out))
	return out, nil
}
