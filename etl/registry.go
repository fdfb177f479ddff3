package etl

import (
	"fmt"
	"sort"
	"sync"

	"github.com/briangreenhill/rinkjoin/pathexpr"
)

// Registry manages the available pipelines by handle.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
}

// NewRegistry creates an empty pipeline registry.
func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[string]*Pipeline)}
}

// Register adds a pipeline, replacing one with the same handle.
func (r *Registry) Register(p *Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[p.Handle()] = p
}

// Get retrieves a pipeline by handle.
func (r *Registry) Get(handle string) (*Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[handle]
	return p, ok
}

// List returns all registered handles, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Transforms maps names to custom output transforms so that definitions
// loaded from files can refer to Go code.
type Transforms struct {
	mu    sync.RWMutex
	funcs map[string]pathexpr.TransformFunc
}

// NewTransforms creates an empty transform set.
func NewTransforms() *Transforms {
	return &Transforms{funcs: make(map[string]pathexpr.TransformFunc)}
}

// Register adds fn under name. Registering a name twice is an error.
func (t *Transforms) Register(name string, fn pathexpr.TransformFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("transform needs a name and a function")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.funcs[name]; dup {
		return fmt.Errorf("transform %q already registered", name)
	}
	t.funcs[name] = fn
	return nil
}

// Lookup returns the transform registered under name.
func (t *Transforms) Lookup(name string) (pathexpr.TransformFunc, bool) {
	if t == nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.funcs[name]
	return fn, ok
}

// Names returns the registered names, sorted.
func (t *Transforms) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.funcs))
	for name := range t.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
