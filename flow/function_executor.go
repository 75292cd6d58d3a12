package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/logging"
	"github.com/hupe1980/beehive/tool"
)

// FunctionResult is the outcome of one function call.
type FunctionResult struct {
	Call     core.FunctionCall
	Output   any
	Err      error
	Duration time.Duration
}

// FunctionExecutor executes a batch of function calls. Implementations must:
//   - Respect ctx cancellation
//   - Never panic (recover internally and report an error result)
//   - Return exactly one result per call, in call order
type FunctionExecutor interface {
	Execute(ctx context.Context, agent core.AgentInfo, tools map[string]tool.Tool, calls []core.FunctionCall, onUpdate core.UpdateFunc) []FunctionResult
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len(calls))
	LogStartEvents bool // log a start line per function
	Logger         logging.Logger
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	ctx context.Context,
	agent core.AgentInfo,
	tools map[string]tool.Tool,
	calls []core.FunctionCall,
	onUpdate core.UpdateFunc,
) []FunctionResult {
	n := len(calls)
	if n == 0 {
		return nil
	}

	results := make([]FunctionResult, n)

	// Fast path: single call, execute inline.
	if n == 1 {
		results[0] = e.executeSingle(ctx, agent, tools, calls[0], onUpdate)
		return results
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var (
		mu sync.Mutex // serializes partial updates
		wg sync.WaitGroup
	)
	sem := make(chan struct{}, maxPar)
	lockedUpdate := core.UpdateFunc(func(u core.PartialUpdate) {
		mu.Lock()
		defer mu.Unlock()
		onUpdate.Emit(u.Key, u.Value)
	})

	batchStart := time.Now()
	for i := range calls {
		if err := ctx.Err(); err != nil {
			for j := i; j < n; j++ {
				results[j] = FunctionResult{Call: calls[j], Err: err}
			}
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = e.executeSingle(ctx, agent, tools, fc, lockedUpdate)
		}(i, calls[i])
	}

	wg.Wait()

	e.cfg.Logger.Debug(
		"agent.functions.batch.complete",
		"agent", agent.Name,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (e *parallelFunctionExecutor) executeSingle(
	ctx context.Context,
	agent core.AgentInfo,
	tools map[string]tool.Tool,
	fc core.FunctionCall,
	onUpdate core.UpdateFunc,
) FunctionResult {
	if err := ctx.Err(); err != nil {
		return FunctionResult{Call: fc, Err: err}
	}

	toolCtx := core.NewToolContext(ctx, fc.ID, agent, e.cfg.Logger).WithUpdates(onUpdate)
	if e.cfg.LogStartEvents {
		e.cfg.Logger.Info("agent.function.start", "agent", agent.Name, "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()
	var (
		result any
		err    error
	)
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				e.cfg.Logger.Error("agent.function.panic", "agent", agent.Name, "function", fc.Name, "recover", r)
			}
		}()
		result, err = executeTool(tools, toolCtx, fc.Name, fc.Arguments)
	}()
	dur := time.Since(start)

	e.cfg.Logger.Info(
		"agent.function.executed",
		"agent", agent.Name,
		"function", fc.Name,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)

	return FunctionResult{Call: fc, Output: result, Err: err, Duration: dur}
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

// executeTool centralizes tool lookup and argument decoding.
func executeTool(tools map[string]tool.Tool, toolCtx *core.ToolContext, toolName, args string) (any, error) {
	impl, ok := tools[toolName]
	if !ok {
		return nil, core.NewError("flow.executeTool", core.ErrToolNotFound, fmt.Sprintf("tool %q", toolName))
	}

	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, tool.NewToolError(toolName, fmt.Sprintf("failed to unmarshal args: %v", err), "VALIDATION_ERROR")
		}
	}

	return impl.Call(toolCtx, argMap)
}
