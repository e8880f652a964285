// Package cache holds the gateway's disposable state: directory
// listings, folder summaries, resolved links and the singleflight fetch
// coordination between them. Every store here can be dropped at any
// time; correctness is restored by refetching from the backend.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/mwantia/vgate/data"
	"github.com/tidwall/btree"
)

type dirEntry struct {
	result    *data.ListResult
	expiresAt time.Time
}

// DirectoryCache is a TTL cache of listing results keyed by
// (mount, normalized directory path). Entries are invalidated
// explicitly, never re-validated against the backend.
type DirectoryCache struct {
	mu      sync.RWMutex
	entries *btree.Map[string, *dirEntry]
}

func NewDirectoryCache() *DirectoryCache {
	return &DirectoryCache{
		entries: btree.NewMap[string, *dirEntry](0),
	}
}

// Get returns a deep copy of the cached listing, or a miss when the
// entry is absent or expired.
func (dc *DirectoryCache) Get(mountID, path string) (*data.ListResult, bool) {
	key := EncodeKey(mountID, path)

	dc.mu.RLock()
	entry, exists := dc.entries.Get(key)
	dc.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		dc.mu.Lock()
		dc.entries.Delete(key)
		dc.mu.Unlock()
		return nil, false
	}

	return entry.result.Clone(), true
}

// Set stores a deep copy of the listing with the given TTL.
// Non-positive TTLs are ignored.
func (dc *DirectoryCache) Set(mountID, path string, result *data.ListResult, ttl time.Duration) {
	if ttl <= 0 || result == nil {
		return
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.entries.Set(EncodeKey(mountID, path), &dirEntry{
		result:    result.Clone(),
		expiresAt: time.Now().Add(ttl),
	})
}

// Invalidate drops the entry for a single directory path.
func (dc *DirectoryCache) Invalidate(mountID, path string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.entries.Delete(EncodeKey(mountID, path))
}

// InvalidateAncestors drops the path plus every ancestor directory up
// to root.
func (dc *DirectoryCache) InvalidateAncestors(mountID, path string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for _, parent := range data.ParentPaths(path) {
		dc.entries.Delete(EncodeKey(mountID, parent))
	}
}

// InvalidateTree drops the path and every cached entry whose decoded
// path is equal to or a descendant of it. The root path degrades to
// whole-mount invalidation.
func (dc *DirectoryCache) InvalidateTree(mountID, path string) {
	if data.IsRoot(path) {
		dc.InvalidateMount(mountID)
		return
	}

	root := data.NormalizePath(path)
	rootKey := EncodeKey(mountID, root)

	dc.mu.Lock()
	defer dc.mu.Unlock()

	// Keys sharing the raw string prefix are contiguous, but include
	// siblings like "/a/bc"; the decoded path boundary check filters
	// those out.
	var stale []string
	dc.entries.Ascend(rootKey, func(key string, _ *dirEntry) bool {
		if !strings.HasPrefix(key, rootKey) {
			return false
		}

		if _, decoded, ok := DecodeKey(key); ok && data.HasPathPrefix(decoded, root) {
			stale = append(stale, key)
		}
		return true
	})

	for _, key := range stale {
		dc.entries.Delete(key)
	}
}

// InvalidateMount drops every entry for the mount.
func (dc *DirectoryCache) InvalidateMount(mountID string) {
	prefix := mountPrefix(mountID)

	dc.mu.Lock()
	defer dc.mu.Unlock()

	var stale []string
	dc.entries.Ascend(prefix, func(key string, _ *dirEntry) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}

		stale = append(stale, key)
		return true
	})

	for _, key := range stale {
		dc.entries.Delete(key)
	}
}

// InvalidateAll drops every entry in the cache.
func (dc *DirectoryCache) InvalidateAll() {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.entries = btree.NewMap[string, *dirEntry](0)
}

// Len returns the number of live entries, expired or not.
func (dc *DirectoryCache) Len() int {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	return dc.entries.Len()
}
