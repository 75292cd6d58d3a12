package core

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors. Match with errors.Is; concrete failures wrap one of these
// in an *Error carrying operation context.
var (
	// ErrConnection means the remote platform cannot be reached.
	ErrConnection = errors.New("connection error")
	// ErrNotReady means an operation ran before init/connect.
	ErrNotReady = errors.New("not ready")
	// ErrUnknownAgent means the requested agent is not in the current catalogue.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrUnsupportedAgentKind means a config names a kind the factory cannot build.
	ErrUnsupportedAgentKind = errors.New("unsupported agent kind")
	// ErrUndefinedAgent means a handle of unknown shape reached execution.
	ErrUndefinedAgent = errors.New("undefined agent")
	// ErrRunExhausted means the retry or iteration budget of a run is spent.
	ErrRunExhausted = errors.New("run exhausted")
	// ErrCancelled means the caller aborted the run.
	ErrCancelled = errors.New("run cancelled")
	// ErrAgentExists means an agent type is already registered.
	ErrAgentExists = errors.New("agent already registered")
	// ErrToolNotFound means a tool name could not be resolved.
	ErrToolNotFound = errors.New("tool not found")
)

// Error wraps a sentinel with the failing operation and a human readable detail.
type Error struct {
	Op     string // operation name, e.g. "platform.RunAgent"
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a new *Error.
func NewError(op string, err error, detail string) *Error {
	return &Error{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error. Returns nil if err is nil.
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Cancelled converts a context error into ErrCancelled while keeping the
// original cause reachable through errors.Is.
func Cancelled(op string, cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	return &Error{Op: op, Err: errors.Join(ErrCancelled, cause), Detail: "aborted by caller"}
}

// IsCancellation reports whether err stems from a caller abort or a context
// cancellation/deadline.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
