package engine

import (
	"context"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/logging"
)

// CallbackType names a point in the invocation lifecycle.
type CallbackType string

const (
	// CallbackBeforeInvoke runs before the platform is contacted. An error
	// rejects the invocation.
	CallbackBeforeInvoke CallbackType = "before_invoke"

	// CallbackOnProgress runs for every progress notification before it is
	// sent to the caller.
	CallbackOnProgress CallbackType = "on_progress"

	// CallbackAfterInvoke runs after the supervisor produced a result.
	CallbackAfterInvoke CallbackType = "after_invoke"

	// CallbackOnError runs when an invocation ends with an error, including
	// cancellation.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext describes the invocation a callback runs for. Fields not
// relevant to Type are nil.
type CallbackContext struct {
	Type         CallbackType
	InvocationID string
	Request      *Request
	Notification *core.ProgressNotification
	Result       *Result
	Err          error
}

// Callback hooks into the invocation lifecycle. Callbacks run synchronously
// on the invocation goroutine and must be safe for concurrent use.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a Callback.
//
// Example:
//
//	audit := NewFunctionCallback(CallbackAfterInvoke, func(ctx context.Context, cc *CallbackContext) error {
//	    log.Printf("%s answered %d bytes", cc.InvocationID, len(cc.Result.Text))
//	    return nil
//	})
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a function based callback.
func NewFunctionCallback(callbackType CallbackType, fn func(ctx context.Context, callbackCtx *CallbackContext) error) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager dispatches callbacks by type in registration order.
//
// Registration is not synchronized; register everything before the first
// invocation. Execute is safe for concurrent use afterwards.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// Register adds a callback. Nil callbacks are ignored.
func (cm *CallbackManager) Register(callback Callback) {
	if callback == nil {
		return
	}
	t := callback.Type()
	cm.callbacks[t] = append(cm.callbacks[t], callback)
}

// Execute runs the callbacks registered for callbackCtx.Type and stops at
// the first error.
func (cm *CallbackManager) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	for _, callback := range cm.callbacks[callbackCtx.Type] {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}
	return nil
}

// LoggingCallback writes one log line per lifecycle event.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging callback for callbackType.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &LoggingCallback{callbackType: callbackType, logger: logger}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	args := []any{"type", cc.Type, "invocation_id", cc.InvocationID}
	switch {
	case cc.Notification != nil:
		args = append(args, "delta_key", cc.Notification.DeltaKey, "delta_length", len(cc.Notification.DeltaValue))
	case cc.Result != nil:
		args = append(args, "output_length", len(cc.Result.Text))
	case cc.Err != nil:
		args = append(args, "error", cc.Err.Error())
	}
	c.logger.Info("engine.callback", args...)
	return nil
}
