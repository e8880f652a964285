// Package vgate implements a storage virtualization gateway: one
// path-addressed surface over many unrelated storage backends.
// Requests resolve through a mount table to capability-checked
// drivers; expensive metadata is cached with explicit invalidation
// fanned out over an event bus.
package vgate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mwantia/vgate/bus"
	"github.com/mwantia/vgate/cache"
	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/data/errors"
	"github.com/mwantia/vgate/driver"
	"github.com/mwantia/vgate/log"
	"github.com/mwantia/vgate/mountstore"
)

// Gateway is the composition root: mount table, driver instances,
// caches and the invalidation bus. Safe for concurrent use.
type Gateway struct {
	mu      sync.RWMutex
	mounts  map[string]*data.Mount
	drivers map[string]driver.Driver

	// driversVersion is the mounts version the driver instances were
	// built against; a bumped counter discards them all.
	driversVersion uint64
	version        atomic.Uint64

	registry *driver.Registry
	store    mountstore.Store

	directories *cache.DirectoryCache
	summaries   *cache.SummaryCache
	urls        *cache.URLCache
	fetches     *cache.FetchGroup
	events      *bus.Bus
	search      *bus.SearchIndexSubscriber

	defaultTTL time.Duration
	logger     *log.Logger
}

// NewGateway creates a gateway and wires the cache subscribers onto
// the invalidation bus.
func NewGateway(opts ...Option) (*Gateway, error) {
	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	urls, err := cache.NewURLCache()
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		mounts:  make(map[string]*data.Mount),
		drivers: make(map[string]driver.Driver),

		registry: options.Registry,
		store:    options.Store,

		directories: cache.NewDirectoryCache(),
		summaries:   cache.NewSummaryCache(),
		urls:        urls,
		fetches:     cache.NewFetchGroup(),
		events:      bus.NewBus(options.Logger),
		search:      bus.NewSearchIndexSubscriber(),

		defaultTTL: options.DefaultTTL,
		logger:     options.Logger.Named("gateway"),
	}

	g.events.SetMountIndex(g)
	g.events.SetVersionHook(func() {
		g.version.Add(1)
	})

	g.events.Subscribe(g.directorySubscriber())
	g.events.Subscribe(g.summarySubscriber())
	g.events.Subscribe(g.urlSubscriber())
	g.events.Subscribe(g.search)

	if g.store != nil {
		if err := g.RefreshMounts(context.Background()); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// Events exposes the invalidation bus so external collaborators
// (preview caches, indexers) can subscribe.
func (g *Gateway) Events() *bus.Bus {
	return g.events
}

// SearchIndex exposes the search index subscriber.
func (g *Gateway) SearchIndex() *bus.SearchIndexSubscriber {
	return g.search
}

// MountsVersion returns the current mounts version counter.
func (g *Gateway) MountsVersion() uint64 {
	return g.version.Load()
}

// Mounts returns a snapshot of the configured mounts.
func (g *Gateway) Mounts() []*data.Mount {
	g.mu.RLock()
	defer g.mu.RUnlock()

	mounts := make([]*data.Mount, 0, len(g.mounts))
	for _, mnt := range g.mounts {
		mounts = append(mounts, mnt.Clone())
	}

	return mounts
}

// MountsByStorageConfig returns every mount bound to the storage
// configuration. Implements bus.MountIndex.
func (g *Gateway) MountsByStorageConfig(storageConfigID string) []*data.Mount {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var mounts []*data.Mount
	for _, mnt := range g.mounts {
		if mnt.StorageConfigID != "" && mnt.StorageConfigID == storageConfigID {
			mounts = append(mounts, mnt.Clone())
		}
	}

	return mounts
}

// AddMount registers (or replaces) a mount, persists it when a store
// is configured, bumps the mounts version and drops the mount's
// cached state.
func (g *Gateway) AddMount(ctx context.Context, mount *data.Mount) error {
	if mount.ID == "" {
		return data.ErrInvalid
	}
	if mount.Type == "" {
		return data.ErrInvalid
	}

	dup := mount.Clone()
	dup.Prefix = data.NormalizePath(dup.Prefix)
	if dup.CacheTTL == 0 {
		dup.CacheTTL = g.defaultTTL
	}

	g.mu.Lock()
	for id, existing := range g.mounts {
		if id != dup.ID && existing.Prefix == dup.Prefix {
			g.mu.Unlock()
			return fmt.Errorf("%w: %s", data.ErrAlreadyMounted, dup.Prefix)
		}
	}
	g.mounts[dup.ID] = dup
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.Save(ctx, dup); err != nil {
			return err
		}
	}

	g.events.Publish(bus.Event{
		Target:            bus.TargetFS,
		MountID:           dup.ID,
		BumpMountsVersion: true,
		Reason:            "mount-added",
	})

	return nil
}

// RemoveMount drops a mount, its driver instance and its cached state.
func (g *Gateway) RemoveMount(ctx context.Context, id string) error {
	g.mu.Lock()
	mnt, exists := g.mounts[id]
	if !exists {
		g.mu.Unlock()
		return data.ErrNotExist
	}

	delete(g.mounts, id)
	if drv, ok := g.drivers[id]; ok {
		delete(g.drivers, id)
		if err := drv.Close(ctx); err != nil {
			g.logger.Warn("Failed to close driver for mount '%s': %v", id, err)
		}
	}
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.Delete(ctx, id); err != nil {
			return err
		}
	}

	g.events.Publish(bus.Event{
		Target:            bus.TargetFS,
		MountID:           mnt.ID,
		BumpMountsVersion: true,
		Reason:            "mount-removed",
	})

	return nil
}

// RefreshMounts reloads the mount table from the configured store and
// bumps the mounts version.
func (g *Gateway) RefreshMounts(ctx context.Context) error {
	if g.store == nil {
		return nil
	}

	loaded, err := g.store.Load(ctx)
	if err != nil {
		return err
	}

	mounts := make(map[string]*data.Mount, len(loaded))
	for _, mnt := range loaded {
		dup := mnt.Clone()
		dup.Prefix = data.NormalizePath(dup.Prefix)
		if dup.CacheTTL == 0 {
			dup.CacheTTL = g.defaultTTL
		}
		mounts[dup.ID] = dup
	}

	g.mu.Lock()
	g.mounts = mounts
	g.mu.Unlock()

	g.events.Publish(bus.Event{
		Target:            bus.TargetFS,
		InvalidateAll:     true,
		BumpMountsVersion: true,
		Reason:            "mounts-refreshed",
	})

	return nil
}

// Resolve maps a virtual path to its driver, mount descriptor and
// driver-facing sub-path using longest-matching-prefix.
func (g *Gateway) Resolve(ctx context.Context, path string) (driver.Driver, *data.Mount, string, error) {
	path = data.NormalizePath(path)

	g.mu.RLock()
	var best *data.Mount
	for _, mnt := range g.mounts {
		if !data.HasPathPrefix(path, mnt.Prefix) {
			continue
		}
		if best == nil || len(mnt.Prefix) > len(best.Prefix) {
			best = mnt
		}
	}
	g.mu.RUnlock()

	if best == nil {
		return nil, nil, "", fmt.Errorf("%w: %s", data.ErrNotMounted, path)
	}

	drv, err := g.driverFor(ctx, best)
	if err != nil {
		return nil, nil, "", err
	}

	return drv, best.Clone(), data.ToRelativePath(path, best.Prefix), nil
}

// driverFor returns the cached driver instance for the mount, lazily
// instantiating it. A bumped mounts version discards every cached
// instance first, so configuration changes always take effect.
func (g *Gateway) driverFor(ctx context.Context, mount *data.Mount) (driver.Driver, error) {
	version := g.version.Load()

	g.mu.Lock()
	if g.driversVersion != version {
		for id, drv := range g.drivers {
			delete(g.drivers, id)
			if err := drv.Close(ctx); err != nil {
				g.logger.Warn("Failed to close driver for mount '%s': %v", id, err)
			}
		}
		g.driversVersion = version
	}

	if drv, exists := g.drivers[mount.ID]; exists {
		g.mu.Unlock()
		return drv, nil
	}
	g.mu.Unlock()

	drv, err := g.registry.New(ctx, mount)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Another request may have won the race; prefer its instance.
	if existing, exists := g.drivers[mount.ID]; exists {
		go drv.Close(context.Background())
		return existing, nil
	}

	g.drivers[mount.ID] = drv
	return drv, nil
}

// Close shuts down every driver instance and the URL cache.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	errs := &errors.Errors{}
	for id, drv := range g.drivers {
		delete(g.drivers, id)
		errs.Add(drv.Close(ctx))
	}

	g.urls.Close()

	return errs.Errors()
}
