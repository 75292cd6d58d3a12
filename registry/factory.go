package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/beehive/agent"
	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/logging"
	"github.com/hupe1980/beehive/memory"
	"github.com/hupe1980/beehive/model"
	"github.com/hupe1980/beehive/tool"
)

// RemoteRunner runs platform agents. *platform.Manager implements it.
type RemoteRunner interface {
	RunAgent(ctx context.Context, remoteAgentID, prompt string) (string, error)
}

// FactoryOptions configures a Factory.
type FactoryOptions struct {
	// Models resolves the language model of a local agent by its kind.
	Models model.Resolver
	// Platform runs operator agents.
	Platform RemoteRunner
	// Counter sizes the memory of local agents.
	Counter memory.TokenCounter
	// Policy bounds runs of local agents started through RunAgent.
	Policy core.ExecutionPolicy
	Logger logging.Logger
}

// Factory creates agent handles from configs and runs them.
type Factory struct {
	opts FactoryOptions
}

// NewFactory creates a Factory.
func NewFactory(optFns ...func(o *FactoryOptions)) *Factory {
	opts := FactoryOptions{
		Counter: memory.ApproxCounter{},
		Policy:  core.OperatorPolicy,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Factory{opts: opts}
}

// CreateAgent builds a handle for cfg. Local agents get the tools named in
// cfg resolved through tools and the supervisor instructions rendered for
// cfg.AgentID under sw.
func (f *Factory) CreateAgent(cfg core.AgentConfig, tools tool.Factory, sw core.Switches) (Handle, error) {
	const op = "registry.CreateAgent"

	switch cfg.AgentKind {
	case core.KindSupervisor:
		if f.opts.Models == nil {
			return nil, core.NewError(op, core.ErrNotReady, "no model resolver configured")
		}
		llm, err := f.opts.Models.Resolve(string(cfg.AgentKind))
		if err != nil {
			return nil, core.WrapOp(op, err)
		}

		var bound []tool.Tool
		if len(cfg.Tools) > 0 {
			if tools == nil {
				return nil, core.NewError(op, core.ErrToolNotFound, strings.Join(cfg.Tools, ", "))
			}
			if bound, err = tools.CreateTools(cfg.Tools); err != nil {
				return nil, core.WrapOp(op, err)
			}
		}

		instructions := agent.Instructions(cfg.AgentID, sw)
		if extra := strings.TrimSpace(cfg.Instructions); extra != "" && extra != NotUsed {
			instructions += "\n\nAdditional instructions:\n" + extra
		}

		a := agent.NewReasoningAgent(cfg.AgentID, llm, func(o *agent.ReasoningAgentOptions) {
			o.Type = cfg.AgentType
			o.Description = cfg.Description
			o.Instructions = instructions
			o.Tools = bound
			o.Counter = f.opts.Counter
			o.Logger = f.opts.Logger
		})

		f.opts.Logger.Debug("registry.agent.created", "kind", cfg.AgentKind, "type", cfg.AgentType, "id", cfg.AgentID, "tools", len(bound))
		return &LocalHandle{Config: cfg.Clone(), Agent: a}, nil

	case core.KindOperator:
		f.opts.Logger.Debug("registry.agent.created", "kind", cfg.AgentKind, "type", cfg.AgentType, "id", cfg.AgentID)
		return &RemoteHandle{
			AgentID:       cfg.AgentID,
			Description:   cfg.Description,
			RemoteAgentID: cfg.AgentType,
		}, nil

	default:
		return nil, core.NewError(op, core.ErrUnsupportedAgentKind, fmt.Sprintf("undefined agent kind agentKind:%s", cfg.AgentKind))
	}
}

// RunAgent runs h with prompt and returns its final text.
func (f *Factory) RunAgent(ctx context.Context, h Handle, prompt string) (string, error) {
	return f.RunAgentStream(ctx, h, prompt, nil)
}

// RunAgentStream runs h and forwards partial updates of local agents to
// onUpdate. A remote result is delivered as one final_answer update.
func (f *Factory) RunAgentStream(ctx context.Context, h Handle, prompt string, onUpdate core.UpdateFunc) (string, error) {
	const op = "registry.RunAgent"

	switch h := h.(type) {
	case *LocalHandle:
		if h == nil || h.Agent == nil {
			return "", core.NewError(op, core.ErrUndefinedAgent, "local handle without agent")
		}
		return h.Agent.Run(ctx, prompt, f.opts.Policy, onUpdate)

	case *RemoteHandle:
		if h == nil {
			return "", core.NewError(op, core.ErrUndefinedAgent, "nil remote handle")
		}
		if f.opts.Platform == nil {
			return "", core.NewError(op, core.ErrNotReady, "no platform connection configured")
		}
		out, err := f.opts.Platform.RunAgent(ctx, h.RemoteAgentID, prompt)
		if err != nil {
			return "", err
		}
		onUpdate.Emit(core.UpdateFinalAnswer, out)
		return out, nil

	default:
		return "", core.NewError(op, core.ErrUndefinedAgent, fmt.Sprintf("undefined agent %T", h))
	}
}
