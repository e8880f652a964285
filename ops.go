package vgate

import (
	"context"
	"io"

	"github.com/mwantia/vgate/bus"
	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/data/errors"
	"github.com/mwantia/vgate/driver"
	"github.com/mwantia/vgate/ledger"
	"github.com/mwantia/vgate/multipart"
)

// Stat returns information about the object at the virtual path.
func (g *Gateway) Stat(ctx context.Context, path string) (*data.ObjectInfo, error) {
	reader, _, subPath, err := g.resolveReader(ctx, path)
	if err != nil {
		return nil, err
	}

	return reader.Stat(ctx, subPath)
}

// Exists checks whether an object exists at the virtual path.
func (g *Gateway) Exists(ctx context.Context, path string) (bool, error) {
	reader, _, subPath, err := g.resolveReader(ctx, path)
	if err != nil {
		return false, err
	}

	return reader.Exists(ctx, subPath)
}

// OpenRead opens the object at the virtual path for reading.
func (g *Gateway) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	reader, _, subPath, err := g.resolveReader(ctx, path)
	if err != nil {
		return nil, err
	}

	return reader.OpenRead(ctx, subPath)
}

// Upload stores an object at the virtual path, replacing any existing
// object, and invalidates the affected cache entries.
func (g *Gateway) Upload(ctx context.Context, path string, reader io.Reader, size int64) error {
	writer, mount, subPath, err := g.resolveWriter(ctx, path)
	if err != nil {
		return err
	}

	if err := writer.Upload(ctx, subPath, reader, size); err != nil {
		return err
	}

	g.publishPath(mount.ID, path, "upload")
	return nil
}

// Update overwrites the content of an existing object.
func (g *Gateway) Update(ctx context.Context, path string, reader io.Reader, size int64) error {
	writer, mount, subPath, err := g.resolveWriter(ctx, path)
	if err != nil {
		return err
	}

	if err := writer.Update(ctx, subPath, reader, size); err != nil {
		return err
	}

	g.publishPath(mount.ID, path, "update")
	return nil
}

// MakeDirectory creates a directory at the virtual path.
func (g *Gateway) MakeDirectory(ctx context.Context, path string) error {
	writer, mount, subPath, err := g.resolveWriter(ctx, path)
	if err != nil {
		return err
	}

	if err := writer.MakeDirectory(ctx, subPath); err != nil {
		return err
	}

	g.publishPath(mount.ID, path, "mkdir")
	return nil
}

// Remove deletes the object or directory at the virtual path.
// Directories are removed recursively, and so is their cached state.
func (g *Gateway) Remove(ctx context.Context, path string) error {
	path = data.NormalizePath(path)

	writer, mount, subPath, err := g.resolveWriter(ctx, path)
	if err != nil {
		return err
	}

	info, statErr := g.Stat(ctx, path)

	if err := writer.Remove(ctx, subPath); err != nil {
		return err
	}

	evt := bus.Event{
		Target:  bus.TargetFS,
		MountID: mount.ID,
		Reason:  "remove",
	}
	if statErr == nil && info.IsDir {
		evt.DirPaths = []string{path}
	} else {
		evt.Paths = []string{path}
	}
	g.events.PublishAsync(evt)

	return nil
}

// Rename moves an object or directory within the same mount.
// Cross-mount renames are rejected.
func (g *Gateway) Rename(ctx context.Context, path, newPath string) error {
	path = data.NormalizePath(path)
	newPath = data.NormalizePath(newPath)

	writer, mount, subPath, err := g.resolveWriter(ctx, path)
	if err != nil {
		return err
	}

	_, newMount, newSubPath, err := g.Resolve(ctx, newPath)
	if err != nil {
		return err
	}
	if newMount.ID != mount.ID {
		return errors.Validation("rename target must stay on mount '%s'", mount.Prefix)
	}

	info, statErr := g.Stat(ctx, path)

	if err := writer.Rename(ctx, subPath, newSubPath); err != nil {
		return err
	}

	evt := bus.Event{
		Target:  bus.TargetFS,
		MountID: mount.ID,
		Reason:  "rename",
	}
	if statErr == nil && info.IsDir {
		evt.DirPaths = []string{path, newPath}
	} else {
		evt.Paths = []string{path, newPath}
	}
	g.events.PublishAsync(evt)

	return nil
}

// Invalidate publishes an explicit invalidation event, for callers who
// know the backend changed out of band.
func (g *Gateway) Invalidate(evt bus.Event) {
	if evt.Target == "" {
		evt.Target = bus.TargetFS
	}

	g.events.Publish(evt)
}

// Multipart builds a multipart upload coordinator backed by the given
// parts ledger, wired to this gateway's mount table and bus.
func (g *Gateway) Multipart(store ledger.Store) *multipart.Coordinator {
	return multipart.NewCoordinator(g, store, g.events, g.logger)
}

func (g *Gateway) resolveReader(ctx context.Context, path string) (driver.Reader, *data.Mount, string, error) {
	drv, mount, subPath, err := g.Resolve(ctx, path)
	if err != nil {
		return nil, nil, "", err
	}

	if !driver.Has(drv, driver.CapReader) {
		return nil, nil, "", errors.DriverNotImplemented(drv.Type(), string(driver.CapReader))
	}

	return drv.(driver.Reader), mount, subPath, nil
}

func (g *Gateway) resolveWriter(ctx context.Context, path string) (driver.Writer, *data.Mount, string, error) {
	drv, mount, subPath, err := g.Resolve(ctx, path)
	if err != nil {
		return nil, nil, "", err
	}

	if !driver.Has(drv, driver.CapWriter) {
		return nil, nil, "", errors.DriverNotImplemented(drv.Type(), string(driver.CapWriter))
	}

	return drv.(driver.Writer), mount, subPath, nil
}

func (g *Gateway) publishPath(mountID, path, reason string) {
	g.events.PublishAsync(bus.Event{
		Target:  bus.TargetFS,
		MountID: mountID,
		Paths:   []string{data.NormalizePath(path)},
		Reason:  reason,
	})
}
