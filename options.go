package vgate

import (
	"time"

	"github.com/mwantia/vgate/driver"
	"github.com/mwantia/vgate/driver/local"
	"github.com/mwantia/vgate/driver/memory"
	"github.com/mwantia/vgate/driver/s3"
	"github.com/mwantia/vgate/log"
	"github.com/mwantia/vgate/mountstore"
)

type Options struct {
	Registry   *driver.Registry
	Store      mountstore.Store
	Logger     *log.Logger
	DefaultTTL time.Duration
}

type Option func(*Options) error

func newDefaultOptions() *Options {
	registry := driver.NewRegistry()
	registry.Register(memory.DriverType, memory.Factory)
	registry.Register(local.DriverType, local.Factory)
	registry.Register(s3.DriverType, s3.Factory)

	return &Options{
		Registry:   registry,
		Logger:     log.New("vgate", log.Info),
		DefaultTTL: 30 * time.Second,
	}
}

// WithRegistry replaces the default driver registry.
func WithRegistry(registry *driver.Registry) Option {
	return func(opts *Options) error {
		opts.Registry = registry
		return nil
	}
}

// WithDriver registers an additional driver factory on the registry.
func WithDriver(typ string, factory driver.Factory) Option {
	return func(opts *Options) error {
		opts.Registry.Register(typ, factory)
		return nil
	}
}

// WithMountStore attaches a persistent mount store; the mount table
// is loaded from it on construction.
func WithMountStore(store mountstore.Store) Option {
	return func(opts *Options) error {
		opts.Store = store
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(opts *Options) error {
		opts.Logger = logger
		return nil
	}
}

// WithDefaultCacheTTL sets the listing cache TTL applied to mounts
// that do not carry their own.
func WithDefaultCacheTTL(ttl time.Duration) Option {
	return func(opts *Options) error {
		opts.DefaultTTL = ttl
		return nil
	}
}
