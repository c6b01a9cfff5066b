package adapter

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor builds an adapter variant.
type Constructor func(Options) Adapter

// Registry maps adapter names to constructors. Selecting an adapter is
// always an explicit lookup by name.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns a registry with every built-in variant.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[string]Constructor)}
	r.ctors[NFCoreMagName] = func(o Options) Adapter { return NewNFCoreMag(o) }
	r.ctors[MetaWRAPName] = func(o Options) Adapter { return NewMetaWRAP(o) }
	r.ctors[GenericName] = func(o Options) Adapter { return NewGeneric(o) }
	return r
}

// Register adds or replaces a constructor.
func (r *Registry) Register(name string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = c
}

// Lookup constructs the adapter registered under name.
func (r *Registry) Lookup(name string, opts Options) (Adapter, error) {
	r.mu.RLock()
	c, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdapter, name)
	}
	return c(opts), nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[name]
	return ok
}

// Names lists registered adapters, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
