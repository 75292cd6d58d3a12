// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with language models inside beehive.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition)
//   - Resolve a model binding by role ("supervisor") from configuration
//   - Protect vendor calls with a circuit breaker and a rate limiter
//   - Facilitate lightweight scripting for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface from this
// package so higher layers (agents, flows) remain decoupled from vendor SDKs.
package model
