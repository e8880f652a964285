// Package mountstore persists mount configurations. The gateway loads
// its mount table from a Store and reloads it whenever the mounts
// version counter is bumped.
package mountstore

import (
	"context"

	"github.com/mwantia/vgate/data"
)

// Store is the persistence contract for mount configurations.
type Store interface {
	// Load returns all configured mounts.
	Load(ctx context.Context) ([]*data.Mount, error)

	// Get returns one mount by id or data.ErrNotExist.
	Get(ctx context.Context, id string) (*data.Mount, error)

	// Save creates or replaces a mount configuration.
	Save(ctx context.Context, mount *data.Mount) error

	// Delete removes a mount configuration.
	Delete(ctx context.Context, id string) error
}
