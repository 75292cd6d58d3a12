// Package core provides the foundational domain types shared by every beehive
// package. It defines:
//
//   - Agent configuration (AgentConfig, AgentKind) and feature Switches
//   - Execution policies and the retry/iteration Limiter used to enforce them
//   - Role based Content / Part values exchanged with language models
//   - Partial updates and progress notifications streamed out of a run
//   - ToolContext, the scoped surface handed to tool implementations
//   - The error taxonomy (sentinels plus the contextual Error wrapper)
//
// The package deliberately has no knowledge of concrete agents, transports or
// model vendors so that every other package can depend on it.
package core
