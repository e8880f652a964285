package driver

import (
	"context"
	"io"

	"github.com/mwantia/vgate/data"
)

// Reader is the READER capability: listing and read access.
// All paths are sub-paths relative to the mount prefix.
type Reader interface {
	Driver

	// List returns the entries under the given directory sub-path.
	// Drivers supporting pagination honor opts.Cursor and opts.Limit;
	// all others return the full listing and ignore both.
	List(ctx context.Context, subPath string, opts data.ListOptions) (*data.ListResult, error)

	// Stat returns information about a single object.
	// Returns data.ErrNotExist if the path doesn't exist.
	Stat(ctx context.Context, subPath string) (*data.ObjectInfo, error)

	// OpenRead opens the object for reading.
	// The returned ReadCloser must be closed by the caller.
	OpenRead(ctx context.Context, subPath string) (io.ReadCloser, error)

	// Exists checks whether an object exists at the sub-path.
	Exists(ctx context.Context, subPath string) (bool, error)
}

// PagedLister is the PAGED_LIST capability. Cursors are opaque
// driver-defined tokens; only the owning driver may interpret them.
type PagedLister interface {
	Reader

	// SupportsPagination is the capability self-test.
	SupportsPagination() bool
}
