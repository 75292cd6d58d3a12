package registry

import (
	"fmt"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/tool"
)

// Registry tool names.
const (
	ToolListAgents        = "list_agents"
	ToolRunAgent          = "run_agent"
	ToolCreateAgentConfig = "create_agent_config"
	ToolUpdateAgentConfig = "update_agent_config"
)

// AgentListing is one entry returned by the list_agents tool.
type AgentListing struct {
	AgentType   string         `json:"agent_type"`
	AgentKind   core.AgentKind `json:"agent_kind"`
	Description string         `json:"description"`
	Tools       []string       `json:"tools,omitempty"`
}

// ToolNames returns the registry tool names available under sw.
func ToolNames(sw core.Switches) []string {
	names := []string{ToolListAgents, ToolRunAgent}
	if sw.AgentRegistry.MutableAgentConfigs {
		names = append(names, ToolCreateAgentConfig, ToolUpdateAgentConfig)
	}
	return names
}

// Tools returns the registry tools in ToolNames order.
func (r *Registry) Tools() []tool.Tool {
	tools := []tool.Tool{r.listAgentsTool(), r.runAgentTool()}
	if r.sw.AgentRegistry.MutableAgentConfigs {
		tools = append(tools, r.createAgentConfigTool(), r.updateAgentConfigTool())
	}
	return tools
}

// ToolsFactory resolves the registry tool names.
func (r *Registry) ToolsFactory() tool.Factory {
	return tool.NewRegistry(r.Tools()...)
}

func (r *Registry) listAgentsTool() tool.Tool {
	return tool.NewFunctionTool(
		ToolListAgents,
		"List the agents you can delegate work to, with their agent_type and description.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			cfgs := r.Configs()
			out := make([]AgentListing, 0, len(cfgs))
			for _, c := range cfgs {
				out = append(out, AgentListing{
					AgentType:   c.AgentType,
					AgentKind:   c.AgentKind,
					Description: c.Description,
					Tools:       c.Tools,
				})
			}
			return out, nil
		},
	)
}

func (r *Registry) runAgentTool() tool.Tool {
	return tool.NewFunctionTool(
		ToolRunAgent,
		"Delegate a task to an agent. The prompt must be self-contained; the agent does not see this conversation.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"agent_type": map[string]any{"type": "string", "description": "agent_type as returned by list_agents"},
				"prompt":     map[string]any{"type": "string", "description": "Task for the agent"},
			},
			"required": []string{"agent_type", "prompt"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			agentType, _ := args["agent_type"].(string)
			prompt, _ := args["prompt"].(string)
			tc.Logger().Info("registry.tool.run_agent", "caller", tc.AgentName(), "type", agentType, "fc_id", tc.FunctionCallID())
			return r.Run(tc.Context(), agentType, prompt)
		},
	)
}

var agentConfigProperties = map[string]any{
	"agent_type":    map[string]any{"type": "string", "description": "Unique agent type"},
	"agent_kind":    map[string]any{"type": "string", "enum": []string{string(core.KindSupervisor), string(core.KindOperator)}},
	"description":   map[string]any{"type": "string", "description": "What the agent is good at"},
	"instructions":  map[string]any{"type": "string", "description": "Additional instructions for local agents"},
	"tools":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	"max_pool_size": map[string]any{"type": "integer", "description": "Maximum concurrent instances"},
}

func (r *Registry) createAgentConfigTool() tool.Tool {
	return tool.NewFunctionTool(
		ToolCreateAgentConfig,
		"Register a new agent config.",
		map[string]any{
			"type":       "object",
			"properties": agentConfigProperties,
			"required":   []string{"agent_type", "agent_kind", "description"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			cfg := core.AgentConfig{AgentID: stringArg(args, "agent_type")}
			applyConfigArgs(&cfg, args)
			if _, exists := r.Config(cfg.AgentType); exists {
				return nil, tool.NewToolError(ToolCreateAgentConfig, fmt.Sprintf("agent type %q already exists", cfg.AgentType), "CONFLICT")
			}
			if err := r.Register(cfg); err != nil {
				return nil, err
			}
			return AgentListing{AgentType: cfg.AgentType, AgentKind: cfg.AgentKind, Description: cfg.Description, Tools: cfg.Tools}, nil
		},
	)
}

func (r *Registry) updateAgentConfigTool() tool.Tool {
	return tool.NewFunctionTool(
		ToolUpdateAgentConfig,
		"Update fields of an existing agent config. Omitted fields keep their value.",
		map[string]any{
			"type":       "object",
			"properties": agentConfigProperties,
			"required":   []string{"agent_type"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			cfg, ok := r.Config(stringArg(args, "agent_type"))
			if !ok {
				return nil, tool.NewToolError(ToolUpdateAgentConfig, fmt.Sprintf("agent type %q is not registered", stringArg(args, "agent_type")), "NOT_FOUND")
			}
			applyConfigArgs(&cfg, args)
			if err := r.Update(cfg); err != nil {
				return nil, err
			}
			return AgentListing{AgentType: cfg.AgentType, AgentKind: cfg.AgentKind, Description: cfg.Description, Tools: cfg.Tools}, nil
		},
	)
}

// applyConfigArgs copies the present tool arguments onto cfg.
func applyConfigArgs(cfg *core.AgentConfig, args map[string]any) {
	if v, ok := args["agent_type"].(string); ok {
		cfg.AgentType = v
	}
	if v, ok := args["agent_kind"].(string); ok {
		cfg.AgentKind = core.AgentKind(v)
	}
	if v, ok := args["description"].(string); ok {
		cfg.Description = v
	}
	if v, ok := args["instructions"].(string); ok {
		cfg.Instructions = v
	}
	switch v := args["tools"].(type) {
	case []string:
		cfg.Tools = append([]string(nil), v...)
	case []any:
		cfg.Tools = make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok {
				cfg.Tools = append(cfg.Tools, s)
			}
		}
	}
	switch v := args["max_pool_size"].(type) {
	case float64:
		cfg.MaxPoolSize = int(v)
	case int:
		cfg.MaxPoolSize = v
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
