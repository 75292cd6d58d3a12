package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/logging"
	"github.com/hupe1980/beehive/model"
	"github.com/hupe1980/beehive/tool"
)

// ErrEmptyTurn is a step failure: the model returned neither text nor tool calls.
var ErrEmptyTurn = errors.New("model returned an empty turn")

// LoopOptions configures a Loop.
type LoopOptions struct {
	Logger            logging.Logger
	Executor          FunctionExecutor
	RequestProcessors []RequestProcessor
}

// Loop runs an agent until it produces a final answer or a budget of its
// execution policy is spent.
type Loop struct {
	agent      FlowAgent
	logger     logging.Logger
	executor   FunctionExecutor
	processors []RequestProcessor
}

// NewLoop creates a reasoning loop for agent.
func NewLoop(agent FlowAgent, optFns ...func(o *LoopOptions)) *Loop {
	opts := LoopOptions{
		Logger:            logging.NoOpLogger{},
		RequestProcessors: DefaultRequestProcessors(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Executor == nil {
		opts.Executor = NewParallelFunctionExecutor(FunctionExecutorConfig{Logger: opts.Logger})
	}
	return &Loop{
		agent:      agent,
		logger:     opts.Logger,
		executor:   opts.Executor,
		processors: opts.RequestProcessors,
	}
}

// AddRequestProcessor appends a request processor; order of registration defines execution order.
func (l *Loop) AddRequestProcessor(p RequestProcessor) {
	l.processors = append(l.processors, p)
}

// Run appends prompt to the agent memory and iterates until the model
// answers without tool calls.
//
// Each failing step is rolled back and retried. More than
// policy.MaxRetriesPerStep failures of one step, more than
// policy.TotalMaxRetries failures overall, or more than policy.MaxIterations
// steps end the run with core.ErrRunExhausted. A cancelled ctx ends it with
// core.ErrCancelled and is never retried. On any error the memory is
// restored to its state before the call.
func (l *Loop) Run(ctx context.Context, prompt string, policy core.ExecutionPolicy, onUpdate core.UpdateFunc) (_ string, err error) {
	const op = "flow.Run"

	if err := policy.Validate(); err != nil {
		return "", core.WrapOp(op, err)
	}
	mem := l.agent.Memory()
	if mem == nil {
		return "", core.NewError(op, errors.New("agent has no memory"), l.agent.Info().Name)
	}

	// A failed run leaves the memory as it found it.
	start := mem.Checkpoint()
	defer func() {
		if err != nil {
			mem.Restore(start)
		}
	}()

	if err := mem.Add(core.NewTextContent("user", prompt)); err != nil {
		return "", core.WrapOp(op, err)
	}

	info := l.agent.Info()
	totalRetries := core.NewLimiter("total retries", policy.TotalMaxRetries)
	stepRetries := core.NewLimiter("retries per step", policy.MaxRetriesPerStep)

	for iteration := 1; iteration <= policy.MaxIterations; iteration++ {
		stepRetries.Reset()
		for {
			if err := ctx.Err(); err != nil {
				return "", core.Cancelled(op, err)
			}

			checkpoint := mem.Checkpoint()
			answer, done, err := l.step(ctx, onUpdate)
			if err == nil {
				if done {
					l.logger.Debug("flow.run.done", "agent", info.Name, "iterations", iteration, "retries", totalRetries.Count())
					return answer, nil
				}
				break
			}

			if ctx.Err() != nil || errors.Is(err, core.ErrCancelled) {
				return "", core.Cancelled(op, err)
			}

			mem.Restore(checkpoint)
			l.logger.Warn("flow.step.retry", "agent", info.Name, "iteration", iteration, "attempt", stepRetries.Count()+1, "error", err.Error())

			if limitErr := stepRetries.Increment(); limitErr != nil {
				return "", core.NewError(op, errors.Join(core.ErrRunExhausted, err), limitErr.Error())
			}
			if limitErr := totalRetries.Increment(); limitErr != nil {
				return "", core.NewError(op, errors.Join(core.ErrRunExhausted, err), limitErr.Error())
			}
		}
	}

	return "", core.NewError(op, core.ErrRunExhausted, fmt.Sprintf("no final answer after %d iterations", policy.MaxIterations))
}

// step performs one model turn and the tool calls it requested. done is true
// when the turn is a final answer.
func (l *Loop) step(ctx context.Context, onUpdate core.UpdateFunc) (string, bool, error) {
	req := new(model.Request)
	for _, p := range l.processors {
		if err := p.ProcessRequest(ctx, req, l.agent); err != nil {
			return "", false, fmt.Errorf("request processor %s failed: %w", p.Name(), err)
		}
	}

	// Text deltas are held until the turn ends: only a turn without tool
	// calls is a final answer.
	var deltas []string
	onPartial := func(resp model.Response) {
		if delta := resp.Content.Text(); delta != "" {
			deltas = append(deltas, delta)
		}
	}

	resp, err := model.Collect(ctx, l.agent.LLM(), *req, onPartial)
	if err != nil {
		return "", false, err
	}

	mem := l.agent.Memory()
	text := resp.Content.Text()
	calls := resp.Content.FunctionCalls()

	if len(calls) == 0 {
		if strings.TrimSpace(text) == "" {
			return "", false, ErrEmptyTurn
		}
		if strings.Join(deltas, "") != text {
			deltas = []string{text}
		}
		for _, d := range deltas {
			onUpdate.Emit(core.UpdateFinalAnswer, d)
		}
		if err := mem.Add(core.NewTextContent("assistant", text)); err != nil {
			return "", false, err
		}
		return text, true, nil
	}

	if text != "" {
		onUpdate.Emit(core.UpdateThought, text)
	}

	tools := make(map[string]tool.Tool, len(l.agent.Tools()))
	for _, t := range l.agent.Tools() {
		tools[t.Name()] = t
	}
	for _, fc := range calls {
		if _, ok := tools[fc.Name]; !ok {
			return "", false, core.NewError("flow.step", core.ErrToolNotFound, fmt.Sprintf("model requested unknown tool %q", fc.Name))
		}
	}

	if err := mem.Add(resp.Content); err != nil {
		return "", false, err
	}

	for _, fc := range calls {
		onUpdate.Emit(core.UpdateToolName, fc.Name)
		onUpdate.Emit(core.UpdateToolInput, fc.Arguments)
	}

	results := l.executor.Execute(ctx, l.agent.Info(), tools, calls, onUpdate)

	parts := make([]core.Part, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			return "", false, fmt.Errorf("tool %s: %w", r.Call.Name, r.Err)
		}
		output := ResultText(r.Output)
		onUpdate.Emit(core.UpdateToolOutput, output)
		parts = append(parts, core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID:       r.Call.ID,
			Name:     r.Call.Name,
			Response: output,
		}})
	}

	if err := mem.Add(core.Content{Role: "tool", Parts: parts}); err != nil {
		return "", false, err
	}

	return "", false, nil
}

// ResultText renders a tool result for the model: strings verbatim,
// everything else as JSON.
func ResultText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
