package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/beehive/core"
)

// Factory resolves tool names to tool instances. Agent creation uses it to
// bind the tools listed in an agent config.
type Factory interface {
	CreateTools(names []string) ([]Tool, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(names []string) ([]Tool, error)

// CreateTools implements Factory.
func (f FactoryFunc) CreateTools(names []string) ([]Tool, error) { return f(names) }

// Registry is a name-indexed set of tools. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CreateTools implements Factory. Unknown names fail with core.ErrToolNotFound.
func (r *Registry) CreateTools(names []string) ([]Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(names))
	for _, n := range names {
		t, ok := r.tools[n]
		if !ok {
			return nil, core.NewError("tool.CreateTools", core.ErrToolNotFound, fmt.Sprintf("tool %q", n))
		}
		out = append(out, t)
	}
	return out, nil
}

// Chain resolves each name against the factories in order; the first factory
// that knows a name wins.
func Chain(factories ...Factory) Factory {
	return FactoryFunc(func(names []string) ([]Tool, error) {
		out := make([]Tool, 0, len(names))
		for _, n := range names {
			var (
				found   Tool
				lastErr error
			)
			for _, f := range factories {
				if f == nil {
					continue
				}
				tools, err := f.CreateTools([]string{n})
				if err != nil {
					lastErr = err
					continue
				}
				if len(tools) == 1 {
					found = tools[0]
					break
				}
			}
			if found == nil {
				if lastErr == nil {
					lastErr = core.NewError("tool.CreateTools", core.ErrToolNotFound, fmt.Sprintf("tool %q", n))
				}
				return nil, lastErr
			}
			out = append(out, found)
		}
		return out, nil
	})
}

var (
	_ Factory = (*Registry)(nil)
	_ Factory = FactoryFunc(nil)
)
