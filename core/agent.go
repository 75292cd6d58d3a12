package core

import (
	"fmt"
	"strings"
)

// AgentKind is the declarative category of an agent.
type AgentKind string

const (
	// KindSupervisor is a local reasoning agent driven by a language model.
	KindSupervisor AgentKind = "supervisor"
	// KindOperator is a remote agent delegated to the platform.
	KindOperator AgentKind = "operator"
)

// AgentConfig declaratively describes an agent available to the supervisor.
//
// AgentType groups interchangeable instances: for operators it is the remote
// agent id on the platform, for local agents it is the pool key. AgentID is
// the identity used when rendering instructions.
type AgentConfig struct {
	AgentID      string    `json:"agentId" yaml:"agentId"`
	AgentKind    AgentKind `json:"agentKind" yaml:"agentKind"`
	AgentType    string    `json:"agentType" yaml:"agentType"`
	Description  string    `json:"description" yaml:"description"`
	Instructions string    `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Tools        []string  `json:"tools" yaml:"tools"`
	MaxPoolSize  int       `json:"maxPoolSize" yaml:"maxPoolSize"`
	AutoPopulate bool      `json:"autoPopulate" yaml:"autoPopulate"`
}

// Validate reports configuration errors that would prevent an agent from
// ever being created.
func (c AgentConfig) Validate() error {
	if strings.TrimSpace(c.AgentType) == "" {
		return fmt.Errorf("agent config: agentType is required")
	}
	if c.AgentKind == "" {
		return fmt.Errorf("agent config %q: agentKind is required", c.AgentType)
	}
	if c.MaxPoolSize < 0 {
		return fmt.Errorf("agent config %q: maxPoolSize must not be negative", c.AgentType)
	}
	return nil
}

// Clone returns a copy that does not share the Tools slice.
func (c AgentConfig) Clone() AgentConfig {
	cp := c
	if c.Tools != nil {
		cp.Tools = append([]string(nil), c.Tools...)
	}
	return cp
}

// AgentRegistrySwitches toggles agent registry features.
type AgentRegistrySwitches struct {
	MutableAgentConfigs bool `json:"mutableAgentConfigs" yaml:"mutableAgentConfigs" mapstructure:"mutable_agent_configs"`
	Restoration         bool `json:"restoration" yaml:"restoration" mapstructure:"restoration"`
}

// TaskManagerSwitches toggles task manager features.
type TaskManagerSwitches struct {
	Restoration bool `json:"restoration" yaml:"restoration" mapstructure:"restoration"`
}

// Switches is the feature bundle that shapes how a supervisor behaves. It is
// an input to instruction rendering and to the registry.
type Switches struct {
	AgentRegistry AgentRegistrySwitches `json:"agentRegistry" yaml:"agentRegistry" mapstructure:"agent_registry"`
	TaskManager   TaskManagerSwitches   `json:"taskManager" yaml:"taskManager" mapstructure:"task_manager"`
}

// SingleShotSwitches disables mutable configuration and every restoration
// path. Supervisor runs use it: nothing outlives the task.
func SingleShotSwitches() Switches {
	return Switches{
		AgentRegistry: AgentRegistrySwitches{MutableAgentConfigs: false, Restoration: false},
		TaskManager:   TaskManagerSwitches{Restoration: false},
	}
}

// AgentInfo carries identifying details about an agent used in tool contexts
// and log lines.
type AgentInfo struct{ Name, Type string }
