// Package lifecycle provides the component start/stop/health contract shared
// by the Store, the HTTP server, the worker pool, and the reconciliation
// sweep, so cmd/server can bring them up and tear them down uniformly.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
)

// Component is the base interface every long-lived piece of the service
// implements: Store, WorkerPool, and the reconciliation sweep all satisfy
// it.
type Component interface {
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Health(ctx context.Context) error
}

// Registry starts and stops a fixed set of Components in registration
// order, and tears them down in reverse order, mirroring the start/stop
// symmetry a service needs regardless of how many components it has.
type Registry struct {
	mu         sync.Mutex
	components []namedComponent
}

type namedComponent struct {
	name string
	c    Component
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a component under name. Components are started in the
// order they are registered and stopped in the reverse order.
func (r *Registry) Register(name string, c Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components = append(r.components, namedComponent{name: name, c: c})
}

// StartAll initializes every registered component in order, stopping and
// returning an error on the first failure.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	components := append([]namedComponent(nil), r.components...)
	r.mu.Unlock()

	for _, nc := range components {
		if err := nc.c.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize %s: %w", nc.name, err)
		}
	}
	return nil
}

// StopAll shuts down every registered component in reverse order,
// collecting and returning individual failures rather than aborting on
// them, so every component gets a chance to release its resources.
func (r *Registry) StopAll(ctx context.Context) []error {
	r.mu.Lock()
	components := append([]namedComponent(nil), r.components...)
	r.mu.Unlock()

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		nc := components[i]
		if err := nc.c.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", nc.name, err))
		}
	}
	return errs
}

// Health checks every registered component and returns the first error
// encountered, if any.
func (r *Registry) Health(ctx context.Context) error {
	r.mu.Lock()
	components := append([]namedComponent(nil), r.components...)
	r.mu.Unlock()

	for _, nc := range components {
		if err := nc.c.Health(ctx); err != nil {
			return fmt.Errorf("%s unhealthy: %w", nc.name, err)
		}
	}
	return nil
}
