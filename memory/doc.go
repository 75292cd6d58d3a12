// Package memory holds the conversation memory used by reasoning agents.
//
// TokenMemory keeps a run's messages within the token budget of the model
// binding, evicting the oldest turns first. Token counts come from a
// TokenCounter: TiktokenCounter uses the BPE encodings of tiktoken-go while
// ApproxCounter is an offline estimate suitable for tests and providers
// without a published tokenizer.
package memory
