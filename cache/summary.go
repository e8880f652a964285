package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/mwantia/vgate/data"
	"github.com/tidwall/btree"
)

type summaryEntry struct {
	summary   data.FolderSummary
	expiresAt time.Time
}

// SummaryCache stores derived recursive size/mtime aggregates per
// directory. Same invalidation surface as DirectoryCache; the two are
// always invalidated in lock-step for the same path set. An absent
// summary means "unknown, recompute", never "empty".
type SummaryCache struct {
	mu      sync.RWMutex
	entries *btree.Map[string, *summaryEntry]
}

func NewSummaryCache() *SummaryCache {
	return &SummaryCache{
		entries: btree.NewMap[string, *summaryEntry](0),
	}
}

func (sc *SummaryCache) Get(mountID, path string) (data.FolderSummary, bool) {
	key := EncodeKey(mountID, path)

	sc.mu.RLock()
	entry, exists := sc.entries.Get(key)
	sc.mu.RUnlock()

	if !exists {
		return data.FolderSummary{}, false
	}

	if time.Now().After(entry.expiresAt) {
		sc.mu.Lock()
		sc.entries.Delete(key)
		sc.mu.Unlock()
		return data.FolderSummary{}, false
	}

	return entry.summary, true
}

func (sc *SummaryCache) Set(mountID, path string, summary data.FolderSummary, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.entries.Set(EncodeKey(mountID, path), &summaryEntry{
		summary:   summary,
		expiresAt: time.Now().Add(ttl),
	})
}

func (sc *SummaryCache) Invalidate(mountID, path string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.entries.Delete(EncodeKey(mountID, path))
}

func (sc *SummaryCache) InvalidateAncestors(mountID, path string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for _, parent := range data.ParentPaths(path) {
		sc.entries.Delete(EncodeKey(mountID, parent))
	}
}

func (sc *SummaryCache) InvalidateTree(mountID, path string) {
	if data.IsRoot(path) {
		sc.InvalidateMount(mountID)
		return
	}

	root := data.NormalizePath(path)
	rootKey := EncodeKey(mountID, root)

	sc.mu.Lock()
	defer sc.mu.Unlock()

	var stale []string
	sc.entries.Ascend(rootKey, func(key string, _ *summaryEntry) bool {
		if !strings.HasPrefix(key, rootKey) {
			return false
		}

		if _, decoded, ok := DecodeKey(key); ok && data.HasPathPrefix(decoded, root) {
			stale = append(stale, key)
		}
		return true
	})

	for _, key := range stale {
		sc.entries.Delete(key)
	}
}

func (sc *SummaryCache) InvalidateMount(mountID string) {
	prefix := mountPrefix(mountID)

	sc.mu.Lock()
	defer sc.mu.Unlock()

	var stale []string
	sc.entries.Ascend(prefix, func(key string, _ *summaryEntry) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}

		stale = append(stale, key)
		return true
	})

	for _, key := range stale {
		sc.entries.Delete(key)
	}
}

func (sc *SummaryCache) InvalidateAll() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.entries = btree.NewMap[string, *summaryEntry](0)
}

func (sc *SummaryCache) Len() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	return sc.entries.Len()
}
