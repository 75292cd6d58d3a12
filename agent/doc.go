// Package agent contains the local reasoning agent and its instruction text.
//
// A ReasoningAgent binds a language model, a tool set, a token bounded memory
// and a system prompt. Running it drives a flow.Loop under a
// core.ExecutionPolicy. Instructions renders the supervisor system prompt
// from an agent id and the feature switches; it is a pure function.
package agent
