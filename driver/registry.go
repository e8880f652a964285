package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/mwantia/vgate/data"
)

// Factory builds a driver instance from a mount configuration.
type Factory func(ctx context.Context, mount *data.Mount) (Driver, error)

// Registry maps backend type names to driver factories. Drivers are
// registered explicitly at the composition root; there is no implicit
// init-time registration.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register binds a backend type name to a factory.
// Registering the same type twice replaces the earlier factory.
func (r *Registry) Register(driverType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[driverType] = factory
}

// Types returns the registered backend type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		types = append(types, typ)
	}

	return types
}

// New instantiates and opens a driver for the mount.
func (r *Registry) New(ctx context.Context, mount *data.Mount) (Driver, error) {
	r.mu.RLock()
	factory, exists := r.factories[mount.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("vgate: unknown driver type '%s'", mount.Type)
	}

	drv, err := factory(ctx, mount)
	if err != nil {
		return nil, err
	}

	if err := drv.Open(ctx); err != nil {
		return nil, err
	}

	return drv, nil
}
