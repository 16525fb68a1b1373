package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/cascadehq/cascade/pkg/flow"
)

// Registry holds named engines so callers (scheduler, MCP server, CLI)
// can kick off flows by name. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]*Engine)}
}

// Register builds an engine for the graph and stores it under the
// graph's name. Registering the same name twice is a CONFLICT.
func (r *Registry) Register(graph *flow.Graph, cfg Config) (*Engine, error) {
	e, err := New(graph, cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.engines[graph.Name()]; exists {
		return nil, flow.NewErrorf(flow.ErrCodeConflict, "flow already registered: %s", graph.Name())
	}
	r.engines[graph.Name()] = e
	return e, nil
}

// Get returns the engine registered under name.
func (r *Registry) Get(name string) (*Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[name]
	if !ok {
		return nil, flow.NewErrorf(flow.ErrCodeNotFound, "flow not registered: %s", name)
	}
	return e, nil
}

// Names returns the registered flow names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Kickoff runs the named flow synchronously.
func (r *Registry) Kickoff(ctx context.Context, name string, inputs map[string]any) (*RunResult, error) {
	e, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return e.Kickoff(ctx, inputs)
}

// Shutdown stops every registered engine's worker pool.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.engines {
		e.Shutdown()
	}
}
