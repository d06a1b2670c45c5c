package analyzer

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages registered processors, keyed by their stable name.
type Registry struct {
	processors map[string]Processor
	mu         sync.RWMutex
}

// NewRegistry creates an empty processor registry.
func NewRegistry() *Registry {
	return &Registry{processors: make(map[string]Processor)}
}

// Register adds a processor, erroring if its name is already taken.
func (r *Registry) Register(p Processor) error {
	if p == nil {
		return fmt.Errorf("analyzer: processor cannot be nil")
	}
	name := p.Name()
	if name == "" {
		return fmt.Errorf("analyzer: processor name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.processors[name]; exists {
		return fmt.Errorf("analyzer: processor %q already registered", name)
	}
	r.processors[name] = p
	return nil
}

// MustRegister registers p, panicking on error. Intended for init().
func (r *Registry) MustRegister(p Processor) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Get retrieves a processor by name.
func (r *Registry) Get(name string) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[name]
	return p, ok
}

// List returns every registered processor name, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.processors))
	for name := range r.processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister removes a processor, reporting whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.processors[name]; !exists {
		return false
	}
	delete(r.processors, name)
	return true
}

// Count returns the number of registered processors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.processors)
}
