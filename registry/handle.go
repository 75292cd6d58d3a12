package registry

import (
	"github.com/hupe1980/beehive/agent"
	"github.com/hupe1980/beehive/core"
)

// Handle is a runnable agent instance. The set of variants is closed:
// *LocalHandle and *RemoteHandle.
type Handle interface {
	// AgentType returns the pool key of the handle.
	AgentType() string
	isHandle()
}

// LocalHandle runs a reasoning agent in process.
type LocalHandle struct {
	Config core.AgentConfig
	Agent  *agent.ReasoningAgent
}

// AgentType implements Handle.
func (h *LocalHandle) AgentType() string { return h.Config.AgentType }

func (*LocalHandle) isHandle() {}

// RemoteHandle delegates runs to a platform agent.
type RemoteHandle struct {
	AgentID       string
	Description   string
	RemoteAgentID string
}

// AgentType implements Handle. For remote agents it is the platform id.
func (h *RemoteHandle) AgentType() string { return h.RemoteAgentID }

func (*RemoteHandle) isHandle() {}

var (
	_ Handle = (*LocalHandle)(nil)
	_ Handle = (*RemoteHandle)(nil)
)
