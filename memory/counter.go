package memory

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates the number of tokens a text occupies.
type TokenCounter interface {
	Count(text string) int
}

// ApproxCounter assumes four characters per token.
type ApproxCounter struct{}

// Count implements TokenCounter.
func (ApproxCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// DefaultEncoding is the BPE encoding used when a model name is unknown.
const DefaultEncoding = "cl100k_base"

// TiktokenCounter counts tokens with a tiktoken BPE encoding.
type TiktokenCounter struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding (e.g. "cl100k_base").
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// NewTiktokenCounterForModel picks the encoding registered for modelName and
// falls back to DefaultEncoding.
func NewTiktokenCounterForModel(modelName string) (*TiktokenCounter, error) {
	if enc, err := tiktoken.EncodingForModel(modelName); err == nil {
		return &TiktokenCounter{enc: enc}, nil
	}
	return NewTiktokenCounter(DefaultEncoding)
}

// Count implements TokenCounter.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.enc.Encode(text, nil, nil))
}

var (
	_ TokenCounter = ApproxCounter{}
	_ TokenCounter = (*TiktokenCounter)(nil)
)
