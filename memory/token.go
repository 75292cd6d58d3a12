package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/beehive/core"
)

// messageOverhead approximates the per-message framing tokens (role, separators).
const messageOverhead = 4

// ErrMessageTooLarge is returned when a single message exceeds the whole budget.
var ErrMessageTooLarge = errors.New("message exceeds memory token budget")

// TokenMemoryOptions configures a TokenMemory.
type TokenMemoryOptions struct {
	Counter TokenCounter
}

type entry struct {
	content core.Content
	tokens  int
}

// Checkpoint is an opaque snapshot of a TokenMemory.
type Checkpoint struct {
	entries []entry
	total   int
}

// TokenMemory is an ordered conversation log bounded by a token budget.
// Adding a message that would overflow the budget evicts the oldest
// messages. Tool responses orphaned by an eviction are evicted as well.
type TokenMemory struct {
	mu        sync.RWMutex
	maxTokens int
	counter   TokenCounter
	entries   []entry
	total     int
}

// NewTokenMemory creates a memory holding at most maxTokens tokens. A
// non-positive budget disables eviction.
func NewTokenMemory(maxTokens int, optFns ...func(o *TokenMemoryOptions)) *TokenMemory {
	opts := TokenMemoryOptions{Counter: ApproxCounter{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Counter == nil {
		opts.Counter = ApproxCounter{}
	}
	return &TokenMemory{maxTokens: maxTokens, counter: opts.Counter}
}

// Add appends contents in order, evicting old messages as needed.
func (m *TokenMemory) Add(contents ...core.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range contents {
		tokens := m.countContent(c)
		if m.maxTokens > 0 && tokens > m.maxTokens {
			return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, tokens, m.maxTokens)
		}
		for m.maxTokens > 0 && m.total+tokens > m.maxTokens && len(m.entries) > 0 {
			m.evictOldest()
		}
		m.entries = append(m.entries, entry{content: c, tokens: tokens})
		m.total += tokens
	}
	return nil
}

func (m *TokenMemory) evictOldest() {
	m.total -= m.entries[0].tokens
	m.entries = m.entries[1:]
	for len(m.entries) > 0 && m.entries[0].content.Role == "tool" {
		m.total -= m.entries[0].tokens
		m.entries = m.entries[1:]
	}
}

func (m *TokenMemory) countContent(c core.Content) int {
	n := messageOverhead
	for _, p := range c.Parts {
		switch part := p.(type) {
		case core.TextPart:
			n += m.counter.Count(part.Text)
		case core.FunctionCallPart:
			n += m.counter.Count(part.FunctionCall.Name) + m.counter.Count(part.FunctionCall.Arguments)
		case core.FunctionResponsePart:
			fr := part.FunctionResponse
			n += m.counter.Count(fr.Name) + m.counter.Count(fr.Error)
			if fr.Response != nil {
				n += m.counter.Count(fmt.Sprintf("%v", fr.Response))
			}
		}
	}
	return n
}

// Messages returns a copy of the stored contents, oldest first.
func (m *TokenMemory) Messages() []core.Content {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Content, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.content
	}
	return out
}

// Len returns the number of stored messages.
func (m *TokenMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Tokens returns the estimated token usage of the stored messages.
func (m *TokenMemory) Tokens() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// MaxTokens returns the configured budget.
func (m *TokenMemory) MaxTokens() int { return m.maxTokens }

// Checkpoint captures the current state so a failed step can be rolled back.
func (m *TokenMemory) Checkpoint() Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Checkpoint{entries: append([]entry(nil), m.entries...), total: m.total}
}

// Restore resets the memory to a previously captured checkpoint.
func (m *TokenMemory) Restore(cp Checkpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]entry(nil), cp.entries...)
	m.total = cp.total
}

// Reset drops every message.
func (m *TokenMemory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.total = 0
}
