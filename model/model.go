package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/beehive/core"
)

// DefaultMaxTokens is the token budget assumed when a binding does not
// report one.
const DefaultMaxTokens = 8192

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction describes the concrete function target of a tool call.
type ToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"` // JSON string of arguments
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by flows.
type Request struct {
	Instructions string           `json:"instructions"` // System instructions for the model
	Contents     []core.Content   `json:"contents"`     // Conversation converted to provider messages
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"` // Indicates if this is a partial response
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
	// MaxTokens is the token budget of the binding. Conversation memory is
	// sized from it.
	MaxTokens int `json:"max_tokens"`
}

// Model is the minimal interface required by flows & agents to drive generation.
//
// Generate returns a response channel and an error channel. Both are closed
// when generation ends; at most one error is sent.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Turn scripts a single MockModel generation.
type Turn struct {
	Text      string
	ToolCalls []core.FunctionCall
	// Err fails the generation with this error.
	Err error
	// Block delays the turn until it is closed or the context ends.
	Block <-chan struct{}
}

// MockModel is a lightweight in‑memory Model useful for tests & examples.
// Scripted turns are consumed in order; once exhausted it falls back to
// canned prompt responses and finally to an echo of the last user text.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	turns     []Turn
	responses map[string]string
	requests  []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
			MaxTokens:     DefaultMaxTokens,
		},
		responses: make(map[string]string),
	}
}

// WithMaxTokens overrides the reported token budget.
func (m *MockModel) WithMaxTokens(n int) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info.MaxTokens = n
	return m
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends scripted turns.
func (m *MockModel) Enqueue(turns ...Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
}

// Requests returns every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

func (m *MockModel) next(req Request) Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.turns) > 0 {
		t := m.turns[0]
		m.turns = m.turns[1:]
		return t
	}
	var inputText string
	for i := len(req.Contents) - 1; i >= 0; i-- {
		if req.Contents[i].Role == "user" {
			inputText = req.Contents[i].Text()
			break
		}
	}
	if r, ok := m.responses[inputText]; ok {
		return Turn{Text: r}
	}
	return Turn{Text: fmt.Sprintf("Mock response to: %s", inputText)}
}

// Generate implements Model; emits optional streaming word chunks then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)
	turn := m.next(req)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if turn.Block != nil {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-turn.Block:
			}
		}
		if turn.Err != nil {
			errCh <- turn.Err
			return
		}
		if req.Stream {
			for _, chunk := range splitKeep(turn.Text) {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.NewTextContent("assistant", chunk),
				}:
				}
			}
		}
		parts := make([]core.Part, 0, len(turn.ToolCalls)+1)
		if turn.Text != "" {
			parts = append(parts, core.TextPart{Text: turn.Text})
		}
		finish := "stop"
		for i, fc := range turn.ToolCalls {
			if fc.ID == "" {
				fc.ID = fmt.Sprintf("call_%d", i)
			}
			parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
			finish = "tool_calls"
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: finish,
		}:
		}
	}()
	return respCh, errCh
}

// splitKeep splits s into word chunks keeping the separating spaces so the
// chunks concatenate back to s.
func splitKeep(s string) []string {
	if s == "" {
		return nil
	}
	words := strings.SplitAfter(s, " ")
	out := words[:0]
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Info implements Model interface.
func (m *MockModel) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// Collect drains a Generate call and returns the final (non partial)
// response. Partial responses are passed to onPartial when it is non-nil.
func Collect(ctx context.Context, m Model, req Request, onPartial func(Response)) (*Response, error) {
	respCh, errCh := m.Generate(ctx, req)
	var final *Response
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				if onPartial != nil {
					onPartial(resp)
				}
				continue
			}
			r := resp
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, err
			}
		}
	}
	if final == nil {
		return nil, fmt.Errorf("model %s returned no final response", m.Info().Name)
	}
	return final, nil
}
