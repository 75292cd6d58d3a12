// Package compose drives a caller assembled sequence of agents. Each slot
// tracks its pending state, logs and timing so a presentation layer can
// render the run as it happens.
package compose

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/logging"
)

// RunningLog is the first log line of every slot in a run.
const RunningLog = "Running the agent..."

var (
	// ErrRunInProgress is returned when the pipeline is changed or submitted
	// while a run is in flight.
	ErrRunInProgress = errors.New("composition run in progress")
	// ErrNoAgents is returned by Submit on an empty pipeline.
	ErrNoAgents = errors.New("composition has no agents")
)

// Runner runs one agent by type. *registry.Registry implements it.
type Runner interface {
	RunAgentStream(ctx context.Context, agentType, prompt string, onDelta func(string)) (string, error)
}

// Stats holds the timing of a slot. End stays nil until the run settles.
type Stats struct {
	Start *time.Time `json:"startTime,omitempty"`
	End   *time.Time `json:"endTime,omitempty"`
}

// Elapsed returns the slot duration, measured up to now while it runs.
func (s Stats) Elapsed(now time.Time) time.Duration {
	if s.Start == nil {
		return 0
	}
	if s.End != nil {
		return s.End.Sub(*s.Start)
	}
	return now.Sub(*s.Start)
}

// Slot is one agent of the composition.
type Slot struct {
	Config    core.AgentConfig `json:"agentConfig"`
	IsPending bool             `json:"isPending"`
	Logs      []string         `json:"logs,omitempty"`
	Stats     *Stats           `json:"stats,omitempty"`
}

func (s Slot) clone() Slot {
	cp := s
	cp.Config = s.Config.Clone()
	if s.Logs != nil {
		cp.Logs = append([]string(nil), s.Logs...)
	}
	if s.Stats != nil {
		st := *s.Stats
		cp.Stats = &st
	}
	return cp
}

// Options configures a Pipeline.
type Options struct {
	Logger logging.Logger
	// Now is the clock used for slot stats.
	Now func() time.Time
}

// Pipeline runs its slots in order: every slot receives the output of the
// previous one as its prompt and the last output is the result. It is safe
// for concurrent use; at most one run is in flight.
type Pipeline struct {
	runner Runner
	opts   Options

	mu     sync.Mutex
	slots  []Slot
	result string
	runID  string
	cancel context.CancelFunc
}

// New creates an empty Pipeline.
func New(runner Runner, optFns ...func(o *Options)) *Pipeline {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{runner: runner, opts: opts}
}

// Add appends a slot for cfg.
func (p *Pipeline) Add(cfg core.AgentConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrRunInProgress
	}
	p.slots = append(p.slots, Slot{Config: cfg.Clone()})
	return nil
}

// Remove deletes the slot at index.
func (p *Pipeline) Remove(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrRunInProgress
	}
	if index < 0 || index >= len(p.slots) {
		return fmt.Errorf("compose: slot index %d out of range [0,%d)", index, len(p.slots))
	}
	p.slots = append(p.slots[:index], p.slots[index+1:]...)
	return nil
}

// Agents returns the agent types in slot order.
func (p *Pipeline) Agents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.slots))
	for _, s := range p.slots {
		out = append(out, s.Config.AgentType)
	}
	return out
}

// Slots returns a snapshot of every slot.
func (p *Pipeline) Slots() []Slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Slot, 0, len(p.slots))
	for _, s := range p.slots {
		out = append(out, s.clone())
	}
	return out
}

// Result returns the result text. While a run streams it holds the output
// of the active slot received so far.
func (p *Pipeline) Result() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Running reports whether a run is in flight.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Submit runs the composition with input and blocks until it settles.
// Every slot ends with IsPending false, whatever the outcome.
func (p *Pipeline) Submit(ctx context.Context, input string) (string, error) {
	const op = "compose.Submit"

	runCtx, runID, err := p.begin(ctx)
	if err != nil {
		return "", err
	}
	defer p.settle()

	p.opts.Logger.Info("compose.run.start", "run_id", runID, "agents", len(p.Agents()))

	prompt := input
	for i := 0; ; i++ {
		agentType, ok := p.slotType(i)
		if !ok {
			break
		}
		if err := runCtx.Err(); err != nil {
			return "", p.fail(runID, core.Cancelled(op, err))
		}

		p.mu.Lock()
		p.result = ""
		p.mu.Unlock()

		out, err := p.runner.RunAgentStream(runCtx, agentType, prompt, func(delta string) {
			p.mu.Lock()
			defer p.mu.Unlock()
			if i < len(p.slots) {
				p.slots[i].Logs = append(p.slots[i].Logs, delta)
			}
			p.result += delta
		})
		if err != nil {
			if runCtx.Err() != nil && !errors.Is(err, core.ErrCancelled) {
				err = core.Cancelled(op, err)
			}
			return "", p.fail(runID, err)
		}

		p.mu.Lock()
		p.result = out
		if i < len(p.slots) {
			p.slots[i].IsPending = false
			if st := p.slots[i].Stats; st != nil && st.End == nil {
				end := p.opts.Now()
				st.End = &end
			}
		}
		p.mu.Unlock()

		p.opts.Logger.Debug("compose.slot.done", "run_id", runID, "slot", i, "type", agentType, "output_length", len(out))
		prompt = out
	}

	p.opts.Logger.Info("compose.run.done", "run_id", runID, "output_length", len(prompt))
	return prompt, nil
}

// begin moves every slot to pending and installs the per run cancel func.
func (p *Pipeline) begin(ctx context.Context) (context.Context, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return nil, "", ErrRunInProgress
	}
	if len(p.slots) == 0 {
		return nil, "", ErrNoAgents
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.runID = newRunID(p.opts.Now())
	p.result = ""

	start := p.opts.Now()
	for i := range p.slots {
		st := start
		p.slots[i].IsPending = true
		p.slots[i].Logs = []string{RunningLog}
		p.slots[i].Stats = &Stats{Start: &st}
	}
	return runCtx, p.runID, nil
}

// settle clears pending state on every exit path.
func (p *Pipeline) settle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	end := p.opts.Now()
	for i := range p.slots {
		p.slots[i].IsPending = false
		if st := p.slots[i].Stats; st != nil && st.End == nil {
			e := end
			st.End = &e
		}
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Pipeline) fail(runID string, err error) error {
	p.opts.Logger.Warn("compose.run.error", "run_id", runID, "cancelled", errors.Is(err, core.ErrCancelled), "error", err.Error())
	return err
}

func (p *Pipeline) slotType(i int) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= len(p.slots) {
		return "", false
	}
	return p.slots[i].Config.AgentType, true
}

// Cancel aborts the run in flight. It reports whether there was one.
func (p *Pipeline) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return false
	}
	p.opts.Logger.Info("compose.run.cancel", "run_id", p.runID)
	p.cancel()
	return true
}

// RunID returns the id of the current or last run.
func (p *Pipeline) RunID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runID
}

// Reset clears the result and the logs and stats of every slot. The agents
// are kept.
func (p *Pipeline) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrRunInProgress
	}
	p.result = ""
	for i := range p.slots {
		p.slots[i] = Slot{Config: p.slots[i].Config}
	}
	return nil
}

// Clear resets the pipeline and removes every agent.
func (p *Pipeline) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrRunInProgress
	}
	p.result = ""
	p.slots = nil
	return nil
}

func newRunID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
