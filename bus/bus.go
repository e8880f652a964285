// Package bus implements the cache invalidation bus. A single logical
// mutation event fans out to every cache that must react to it.
// Delivery is best-effort and at-most-once: a subscriber failure is
// logged and never surfaced to the mutating request.
package bus

import (
	"fmt"
	"sync"

	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/log"
)

// Subscriber reacts to invalidation events.
type Subscriber interface {
	Name() string
	OnInvalidate(evt Event) error
}

// SubscriberFunc adapts a plain function into a Subscriber.
type SubscriberFunc struct {
	SubscriberName string
	Handler        func(evt Event) error
}

func (s SubscriberFunc) Name() string                { return s.SubscriberName }
func (s SubscriberFunc) OnInvalidate(evt Event) error { return s.Handler(evt) }

// MountIndex resolves which mounts share one storage configuration.
// Implemented by the gateway's mount table.
type MountIndex interface {
	MountsByStorageConfig(storageConfigID string) []*data.Mount
}

// Bus fans invalidation events out to registered subscribers.
// Subscribers are registered at startup; fan-out order is registration
// order and each subscriber is isolated from the others' failures.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber

	index       MountIndex
	bumpVersion func()
	logger      *log.Logger
}

func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Discard()
	}

	return &Bus{
		logger: logger.Named("bus"),
	}
}

// Subscribe registers a subscriber. Not safe to call concurrently with
// Publish; registration belongs to the composition root.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = append(b.subscribers, sub)
}

// SetMountIndex installs the resolver for storage-config scoped events.
func (b *Bus) SetMountIndex(index MountIndex) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.index = index
}

// SetVersionHook installs the action run for BumpMountsVersion events.
func (b *Bus) SetVersionHook(bump func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bumpVersion = bump
}

// Publish delivers the event to every subscriber. Never returns an
// error; failures are logged and swallowed. Events carrying a storage
// config id are first expanded to one per-mount event for every mount
// bound to that configuration.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	subscribers := b.subscribers
	index := b.index
	bump := b.bumpVersion
	b.mu.RUnlock()

	if evt.BumpMountsVersion && bump != nil {
		bump()
	}

	if evt.StorageConfigID != "" && evt.MountID == "" {
		if index == nil {
			b.logger.Warn("Dropping storage-config event '%s': no mount index registered", evt.Reason)
			return
		}

		for _, mnt := range index.MountsByStorageConfig(evt.StorageConfigID) {
			expanded := evt
			expanded.StorageConfigID = ""
			expanded.BumpMountsVersion = false
			expanded.MountID = mnt.ID
			b.deliver(subscribers, expanded)
		}
		return
	}

	b.deliver(subscribers, evt)
}

// PublishAsync delivers the event on its own goroutine so mutating
// requests never wait on cache bookkeeping.
func (b *Bus) PublishAsync(evt Event) {
	go b.Publish(evt)
}

func (b *Bus) deliver(subscribers []Subscriber, evt Event) {
	for _, sub := range subscribers {
		b.notify(sub, evt)
	}
}

func (b *Bus) notify(sub Subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Subscriber '%s' panicked on '%s': %v", sub.Name(), evt.Reason, r)
		}
	}()

	if err := sub.OnInvalidate(evt); err != nil {
		b.logger.Warn("Subscriber '%s' failed on '%s': %v", sub.Name(), evt.Reason, err)
	}
}

// String summarizes the event for log lines.
func (e Event) String() string {
	return fmt.Sprintf("target=%s mount=%s paths=%d dirs=%d reason=%s",
		e.Target, e.MountID, len(e.Paths), len(e.DirPaths), e.Reason)
}
