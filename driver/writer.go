package driver

import (
	"context"
	"io"
)

// Writer is the WRITER capability: mutation access.
type Writer interface {
	Driver

	// Upload stores a new object at the sub-path, replacing any
	// existing object.
	Upload(ctx context.Context, subPath string, reader io.Reader, size int64) error

	// Update overwrites the content of an existing object.
	// Returns data.ErrNotExist if the path doesn't exist.
	Update(ctx context.Context, subPath string, reader io.Reader, size int64) error

	// MakeDirectory creates a directory at the sub-path.
	MakeDirectory(ctx context.Context, subPath string) error

	// Remove deletes the object or directory at the sub-path.
	// Directories are removed recursively.
	Remove(ctx context.Context, subPath string) error

	// Rename moves an object or directory within the same mount.
	Rename(ctx context.Context, subPath, newSubPath string) error
}
