package core

import "fmt"

// ExecutionPolicy bounds a reasoning run. Values are caller supplied
// constants and never adapt during a run.
type ExecutionPolicy struct {
	// MaxIterations caps the number of steps (model turns) in one run.
	MaxIterations int `json:"maxIterations" mapstructure:"max_iterations"`
	// MaxRetriesPerStep caps retries of a single failing step.
	MaxRetriesPerStep int `json:"maxRetriesPerStep" mapstructure:"max_retries_per_step"`
	// TotalMaxRetries caps retries summed over every step of the run.
	TotalMaxRetries int `json:"totalMaxRetries" mapstructure:"total_max_retries"`
}

var (
	// SupervisorPolicy is used for the top-level supervisor run.
	SupervisorPolicy = ExecutionPolicy{MaxIterations: 100, MaxRetriesPerStep: 2, TotalMaxRetries: 10}

	// OperatorPolicy is used when the factory runs a local agent on behalf
	// of the supervisor.
	OperatorPolicy = ExecutionPolicy{MaxIterations: 8, MaxRetriesPerStep: 2, TotalMaxRetries: 10}
)

// Validate rejects policies that could never complete a step.
func (p ExecutionPolicy) Validate() error {
	if p.MaxIterations <= 0 {
		return fmt.Errorf("execution policy: maxIterations must be positive, got %d", p.MaxIterations)
	}
	if p.MaxRetriesPerStep < 0 || p.TotalMaxRetries < 0 {
		return fmt.Errorf("execution policy: retry budgets must not be negative")
	}
	return nil
}
