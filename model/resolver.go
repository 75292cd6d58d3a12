package model

import (
	"fmt"
	"sort"
	"sync"
)

// Resolver returns the model binding configured for a role such as
// "supervisor".
type Resolver interface {
	Resolve(role string) (Model, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(role string) (Model, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(role string) (Model, error) { return f(role) }

// Registry is a concurrency safe role -> Model table. A model registered
// under DefaultRole answers roles that have no explicit binding.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
}

// DefaultRole is the fallback role.
const DefaultRole = "default"

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Model)}
}

// Register binds m to role, replacing any previous binding.
func (r *Registry) Register(role string, m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[role] = m
}

// Resolve implements Resolver.
func (r *Registry) Resolve(role string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.models[role]; ok {
		return m, nil
	}
	if m, ok := r.models[DefaultRole]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("no model bound to role %q", role)
}

// Roles lists the bound roles in sorted order.
func (r *Registry) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roles := make([]string, 0, len(r.models))
	for role := range r.models {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
