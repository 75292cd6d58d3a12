// Package logging provides a minimal logging interface and adapters for beehive.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn,
// Error) that the platform manager, the engine and the reasoning loop use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - BeehiveLogger, a leveled logger with component / invocation context
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(manager, factory, func(o *engine.Options) { o.Logger = logger })
//
// Messages are short dotted event keys ("platform.connect.start") followed by
// key/value pairs.
package logging
