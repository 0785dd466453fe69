package dag

import (
	"sort"
	"sync"
)

// Registry maps component names to run functions for pipeline resolution.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]RunFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]RunFunc)}
}

// Register adds or replaces a component.
func (r *Registry) Register(name string, fn RunFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Get retrieves a component by name.
func (r *Registry) Get(name string) (RunFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// List returns sorted names of all registered components.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
