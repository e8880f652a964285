package vgate

import (
	"context"

	"github.com/mwantia/vgate/bus"
	"github.com/mwantia/vgate/cache"
	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/data/errors"
	"github.com/mwantia/vgate/driver"
)

// List returns the entries under the virtual directory path.
//
// Non-paged listings are served from the directory cache when the mount
// carries a positive TTL; misses hit the backend through a singleflight
// group so concurrent requests for the same listing share one backend
// call. Paged and refresh requests always bypass the cache. The
// returned result is always the caller's own copy.
func (g *Gateway) List(ctx context.Context, path string, opts data.ListOptions) (*data.ListResult, error) {
	path = data.NormalizePath(path)

	drv, mount, subPath, err := g.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}

	if !driver.Has(drv, driver.CapReader) {
		return nil, errors.DriverNotImplemented(drv.Type(), string(driver.CapReader))
	}

	if opts.Paged() && !driver.Has(drv, driver.CapPagedList) {
		return nil, errors.DriverNotImplemented(drv.Type(), string(driver.CapPagedList))
	}

	cacheable := !opts.Refresh && !opts.Paged() && mount.CacheTTL > 0

	if cacheable {
		if result, hit := g.directories.Get(mount.ID, path); hit {
			g.logger.Debug("Listing cache hit for '%s'", path)
			return result, nil
		}
	}

	reader := drv.(driver.Reader)

	result, shared, err := g.fetches.Fetch(cache.FetchKey(mount.ID, path, opts), func() (*data.ListResult, error) {
		return reader.List(ctx, subPath, opts)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		g.logger.Debug("Listing fetch for '%s' shared an in-flight call", path)
	}

	if cacheable || opts.Refresh {
		if len(result.Objects) == 0 && !result.HasMore {
			// An empty listing is never cached: the directory may have
			// been removed out of band, and caching "nothing here"
			// would pin that answer for a full TTL. Everything below
			// the path is stale either way, including the folder
			// summaries, so the invalidation fans out over the bus.
			g.events.Publish(bus.Event{
				Target:   bus.TargetFS,
				MountID:  mount.ID,
				DirPaths: []string{path},
				Reason:   "empty-listing",
			})
		} else if mount.CacheTTL > 0 && !opts.Paged() {
			g.directories.Set(mount.ID, path, result, mount.CacheTTL)
		}
	}

	return result.Clone(), nil
}

// Summary returns best-effort recursive aggregates for the directory,
// served from the summary cache when fresh. A summary walks the full
// subtree through cached listings where available.
func (g *Gateway) Summary(ctx context.Context, path string) (data.FolderSummary, error) {
	path = data.NormalizePath(path)

	_, mount, _, err := g.Resolve(ctx, path)
	if err != nil {
		return data.FolderSummary{}, err
	}

	if summary, hit := g.summaries.Get(mount.ID, path); hit {
		return summary, nil
	}

	summary, err := g.computeSummary(ctx, path)
	if err != nil {
		return data.FolderSummary{}, err
	}

	if mount.CacheTTL > 0 {
		g.summaries.Set(mount.ID, path, summary, mount.CacheTTL)
	}

	return summary, nil
}

func (g *Gateway) computeSummary(ctx context.Context, path string) (data.FolderSummary, error) {
	var summary data.FolderSummary

	result, err := g.List(ctx, path, data.ListOptions{})
	if err != nil {
		return summary, err
	}

	for _, obj := range result.Objects {
		if obj.ModTime.After(summary.ModTime) {
			summary.ModTime = obj.ModTime
		}

		if !obj.IsDir {
			summary.Size += obj.Size
			continue
		}

		child, err := g.computeSummary(ctx, data.JoinPath(path, obj.Name))
		if err != nil {
			return data.FolderSummary{}, err
		}

		summary.Size += child.Size
		if child.ModTime.After(summary.ModTime) {
			summary.ModTime = child.ModTime
		}
	}

	return summary, nil
}
