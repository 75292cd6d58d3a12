// Package engine runs the supervisor: it connects to the platform, turns the
// remote catalogue into operator configs, builds a fresh agent registry per
// task and drives a supervisor reasoning agent over it while streaming
// progress to the caller.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/internal/tracer"
	"github.com/hupe1980/beehive/logging"
	"github.com/hupe1980/beehive/platform"
	"github.com/hupe1980/beehive/registry"
	"github.com/hupe1980/beehive/tool"
)

// DefaultSupervisorID is the agent id the supervisor instructions are
// rendered for.
const DefaultSupervisorID = "supervisor"

// DefaultOperatorPoolSize caps concurrent runs per remote agent type.
const DefaultOperatorPoolSize = 10

// ErrInvocationNotFound is returned by Stop for unknown invocation ids.
var ErrInvocationNotFound = errors.New("invocation not found")

// Platform is the connection surface the engine needs. *platform.Manager
// implements it.
type Platform interface {
	registry.RemoteRunner
	Init(ctx context.Context, allowed []string, autoConnect bool) error
	ListAgents(ctx context.Context) ([]platform.RemoteAgent, error)
}

// Request is one task for the supervisor.
type Request struct {
	Text string `json:"text"`
	// AvailableAgents restricts the remote agents the supervisor may use.
	// nil allows every agent, an empty slice allows none.
	AvailableAgents []string `json:"availableAgents"`
	// ProgressToken enables progress notifications when non-nil.
	ProgressToken any `json:"progressToken,omitempty"`
	// Policy overrides Options.Policy when MaxIterations is set.
	Policy core.ExecutionPolicy `json:"-"`
}

// Result is the outcome of a successful task.
type Result struct {
	Text string   `json:"text"`
	Logs []string `json:"logs"`
}

// Completion is delivered exactly once per invocation.
type Completion struct {
	Result *Result
	Err    error
}

// Options configures an Engine.
type Options struct {
	SupervisorID     string
	Policy           core.ExecutionPolicy
	OperatorPoolSize int
	// Fixtures are static agent configs registered next to the platform
	// catalogue. A fixture replaces a listed agent of the same type.
	Fixtures []core.AgentConfig
	// Tools resolves the tool names of local fixture agents.
	Tools     tool.Factory
	Callbacks []Callback
	Logger    logging.Logger
}

// Engine executes supervisor tasks. It is safe for concurrent use; every
// invocation gets its own registry and supervisor instance.
type Engine struct {
	platform  Platform
	factory   *registry.Factory
	callbacks *CallbackManager
	opts      Options

	mu                sync.RWMutex
	activeInvocations map[string]*invocation
}

// invocation is the stop handle of a running invocation. sendMu is held
// while a progress notification is checked and sent, so that Stop can wait
// out a send that is already in flight.
type invocation struct {
	cancel context.CancelFunc
	sendMu sync.Mutex
}

// stop cancels the run and waits for an in-flight send to give up. A send
// blocked on the unbuffered channel observes the cancellation without
// needing a receiver.
func (inv *invocation) stop() {
	inv.cancel()
	inv.sendMu.Lock()
	defer inv.sendMu.Unlock()
}

// send delivers n unless the run was cancelled. It reports whether n was
// delivered.
func (inv *invocation) send(ctx context.Context, ch chan<- core.ProgressNotification, n core.ProgressNotification) bool {
	inv.sendMu.Lock()
	defer inv.sendMu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case ch <- n:
		return true
	}
}

// New creates an Engine. A nil factory gets a default one bound to p, which
// cannot create the supervisor until a model resolver is configured.
func New(p Platform, factory *registry.Factory, optFns ...func(o *Options)) *Engine {
	opts := Options{
		SupervisorID:     DefaultSupervisorID,
		Policy:           core.SupervisorPolicy,
		OperatorPoolSize: DefaultOperatorPoolSize,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if factory == nil {
		factory = registry.NewFactory(func(o *registry.FactoryOptions) {
			o.Platform = p
			o.Logger = opts.Logger
		})
	}

	callbacks := NewCallbackManager()
	for _, cb := range opts.Callbacks {
		callbacks.Register(cb)
	}

	return &Engine{
		platform:          p,
		factory:           factory,
		callbacks:         callbacks,
		opts:              opts,
		activeInvocations: make(map[string]*invocation),
	}
}

// Invoke prepares the supervisor for req and runs it in the background.
//
// Connection and configuration errors are returned directly. Afterwards
// progress notifications arrive on the first channel in loop order (only
// when req carries a progress token) and exactly one Completion on the
// second. Both channels are closed when the invocation ends.
//
// The progress channel is unbuffered and must be drained. Once Stop has
// returned, or ctx is done, no further notification is sent.
func (e *Engine) Invoke(ctx context.Context, req Request) (string, <-chan core.ProgressNotification, <-chan Completion, error) {
	const op = "engine.Invoke"

	invocationID := core.NewID()

	if err := e.callbacks.Execute(ctx, &CallbackContext{
		Type:         CallbackBeforeInvoke,
		InvocationID: invocationID,
		Request:      &req,
	}); err != nil {
		return "", nil, nil, core.WrapOp(op, err)
	}

	supervisor, err := e.prepare(ctx, invocationID, req)
	if err != nil {
		e.opts.Logger.Error("engine.invoke.prepare_failed", "invocation_id", invocationID, "error", err.Error())
		return "", nil, nil, err
	}

	policy := e.opts.Policy
	if req.Policy.MaxIterations > 0 {
		policy = req.Policy
	}

	progressCh := make(chan core.ProgressNotification)
	completionCh := make(chan Completion, 1)

	runCtx, cancel := context.WithCancel(ctx)
	inv := &invocation{cancel: cancel}

	e.mu.Lock()
	e.activeInvocations[invocationID] = inv
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.activeInvocations, invocationID)
			e.mu.Unlock()
			cancel()
			close(progressCh)
			close(completionCh)
		}()

		spanCtx, span := tracer.StartSpan(runCtx, "engine.invoke")
		span.SetAttributes(
			tracer.StringAttr("invocation_id", invocationID),
			tracer.IntAttr("policy.max_iterations", policy.MaxIterations),
		)

		e.opts.Logger.Info("engine.invoke.start", "invocation_id", invocationID, "tools", len(supervisor.Agent.Tools()), "progress", req.ProgressToken != nil)

		text, runErr := supervisor.Agent.Run(spanCtx, req.Text, policy, func(u core.PartialUpdate) {
			if req.ProgressToken == nil || u.Key != core.UpdateFinalAnswer {
				return
			}
			if runCtx.Err() != nil {
				return
			}
			n := core.ProgressNotification{ProgressToken: req.ProgressToken, DeltaKey: u.Key, DeltaValue: u.Value}
			if cbErr := e.callbacks.Execute(runCtx, &CallbackContext{
				Type:         CallbackOnProgress,
				InvocationID: invocationID,
				Request:      &req,
				Notification: &n,
			}); cbErr != nil {
				e.opts.Logger.Warn("engine.callback.error", "invocation_id", invocationID, "type", CallbackOnProgress, "error", cbErr.Error())
			}
			inv.send(runCtx, progressCh, n)
		})

		if runErr == nil && runCtx.Err() != nil {
			runErr = core.Cancelled(op, runCtx.Err())
		}
		if runErr != nil && runCtx.Err() != nil && !errors.Is(runErr, core.ErrCancelled) {
			runErr = core.Cancelled(op, runErr)
		}
		tracer.End(span, runErr)

		if runErr != nil {
			e.opts.Logger.Error("engine.invoke.error", "invocation_id", invocationID, "cancelled", errors.Is(runErr, core.ErrCancelled), "error", runErr.Error())
			_ = e.callbacks.Execute(context.WithoutCancel(ctx), &CallbackContext{
				Type:         CallbackOnError,
				InvocationID: invocationID,
				Request:      &req,
				Err:          runErr,
			})
			completionCh <- Completion{Err: runErr}
			return
		}

		result := &Result{Text: text, Logs: []string{}}
		if cbErr := e.callbacks.Execute(runCtx, &CallbackContext{
			Type:         CallbackAfterInvoke,
			InvocationID: invocationID,
			Request:      &req,
			Result:       result,
		}); cbErr != nil {
			e.opts.Logger.Warn("engine.callback.error", "invocation_id", invocationID, "type", CallbackAfterInvoke, "error", cbErr.Error())
		}

		e.opts.Logger.Info("engine.invoke.done", "invocation_id", invocationID, "output_length", len(text))
		completionCh <- Completion{Result: result}
	}()

	return invocationID, progressCh, completionCh, nil
}

// prepare connects, converts the catalogue into operator configs and builds
// the supervisor on a fresh registry.
func (e *Engine) prepare(ctx context.Context, invocationID string, req Request) (*registry.LocalHandle, error) {
	const op = "engine.prepare"

	if e.platform == nil {
		return nil, core.NewError(op, core.ErrNotReady, "no platform configured")
	}
	if err := e.platform.Init(ctx, req.AvailableAgents, true); err != nil {
		return nil, core.WrapOp(op, err)
	}
	remotes, err := e.platform.ListAgents(ctx)
	if err != nil {
		return nil, core.WrapOp(op, err)
	}

	sw := core.SingleShotSwitches()
	reg := registry.New(e.factory, e.opts.Tools, sw, func(o *registry.Options) {
		o.Logger = e.opts.Logger
	})
	if err := reg.RegisterAll(MergeConfigs(OperatorConfigs(remotes, e.opts.OperatorPoolSize), e.opts.Fixtures)...); err != nil {
		return nil, core.WrapOp(op, err)
	}

	h, err := e.factory.CreateAgent(core.AgentConfig{
		AgentID:   e.opts.SupervisorID,
		AgentKind: core.KindSupervisor,
		AgentType: e.opts.SupervisorID,
		Tools:     registry.ToolNames(sw),
	}, reg.ToolsFactory(), sw)
	if err != nil {
		return nil, core.WrapOp(op, err)
	}
	supervisor, ok := h.(*registry.LocalHandle)
	if !ok || supervisor.Agent == nil {
		return nil, core.NewError(op, core.ErrUndefinedAgent, fmt.Sprintf("supervisor handle %T", h))
	}

	e.opts.Logger.Debug("engine.invoke.prepared", "invocation_id", invocationID, "operators", len(remotes))
	return supervisor, nil
}

// OperatorConfigs maps the platform catalogue to operator agent configs.
func OperatorConfigs(remotes []platform.RemoteAgent, poolSize int) []core.AgentConfig {
	cfgs := make([]core.AgentConfig, 0, len(remotes))
	for _, r := range remotes {
		cfgs = append(cfgs, core.AgentConfig{
			AgentID:      r.ID,
			AgentKind:    core.KindOperator,
			AgentType:    r.ID,
			Description:  r.Description,
			Instructions: registry.NotUsed,
			Tools:        []string{},
			MaxPoolSize:  poolSize,
			AutoPopulate: false,
		})
	}
	return cfgs
}

// MergeConfigs appends fixtures to listed. A fixture whose agent type is
// already listed takes that entry's place.
func MergeConfigs(listed, fixtures []core.AgentConfig) []core.AgentConfig {
	out := make([]core.AgentConfig, 0, len(listed)+len(fixtures))
	index := make(map[string]int, len(listed)+len(fixtures))
	for _, cfgs := range [][]core.AgentConfig{listed, fixtures} {
		for _, c := range cfgs {
			if i, ok := index[c.AgentType]; ok {
				out[i] = c.Clone()
				continue
			}
			index[c.AgentType] = len(out)
			out = append(out, c.Clone())
		}
	}
	return out
}

// Run invokes req and waits for its completion. Progress notifications are
// passed to onProgress when it is non-nil.
func (e *Engine) Run(ctx context.Context, req Request, onProgress func(core.ProgressNotification)) (*Result, error) {
	_, progress, completion, err := e.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	for n := range progress {
		if onProgress != nil && ctx.Err() == nil {
			onProgress(n)
		}
	}
	c, ok := <-completion
	if !ok {
		return nil, core.NewError("engine.Run", core.ErrCancelled, "invocation ended without completion")
	}
	return c.Result, c.Err
}

// Stop cancels a running invocation.
func (e *Engine) Stop(invocationID string) error {
	e.mu.RLock()
	inv, ok := e.activeInvocations[invocationID]
	e.mu.RUnlock()
	if !ok {
		return core.NewError("engine.Stop", ErrInvocationNotFound, invocationID)
	}
	inv.stop()

	e.opts.Logger.Info("engine.invoke.stopped", "invocation_id", invocationID)
	return nil
}

// ActiveInvocations returns the number of running invocations.
func (e *Engine) ActiveInvocations() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.activeInvocations)
}
