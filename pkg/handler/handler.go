// Package handler defines the unit-of-work contract and the kind
// registry that routes jobs to implementations.
package handler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
	"github.com/elev8tion/agm-platform-sub001/pkg/progress"
)

// Handler is the injected unit of work for one job kind. Execute
// receives the job's parameters and a tracker bound to the job; a
// returned error wrapped with core.NoRetry short-circuits retries.
type Handler interface {
	Execute(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error)
}

// Func adapts a plain function to the Handler interface.
type Func func(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error)

// Execute implements Handler.
func (f Func) Execute(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
	return f(ctx, params, tracker)
}

// Registry maps job kinds to handlers. Kinds are registered once at
// startup; lookups at execution time take a read lock only.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a kind to a handler. The kind name is validated and
// duplicates are rejected.
func (r *Registry) Register(kind string, h Handler) error {
	if err := core.ValidateKindName(kind); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("handler: nil handler for kind %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[kind]; exists {
		return fmt.Errorf("handler: kind %q already registered", kind)
	}
	r.handlers[kind] = h
	return nil
}

// MustRegister is Register for startup wiring; it panics on error.
func (r *Registry) MustRegister(kind string, h Handler) {
	if err := r.Register(kind, h); err != nil {
		panic(err)
	}
}

// Get returns the handler for a kind.
func (r *Registry) Get(kind string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
