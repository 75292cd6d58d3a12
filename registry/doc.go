// Package registry builds runnable agents from declarative configuration and
// pools them per agent type.
//
// A Factory turns a core.AgentConfig into a Handle: a *LocalHandle wrapping a
// reasoning agent for the supervisor kind, or a *RemoteHandle naming a
// platform agent for the operator kind. A Registry keeps the configs,
// hands out pooled handles and exposes itself to the supervisor model as a
// set of tools (list_agents, run_agent and, with mutable configs,
// create_agent_config and update_agent_config).
package registry
