package bus

import (
	"strings"
	"sync"

	"github.com/mwantia/vgate/cache"
	"github.com/mwantia/vgate/data"
	"github.com/tidwall/btree"
)

// SearchIndexSubscriber tracks which paths the external search indexer
// has seen and drops invalidated ones so stale entries get re-indexed.
// The indexer itself is an external collaborator; this keeps its view
// of the tree honest from inside the gateway.
type SearchIndexSubscriber struct {
	mu      sync.RWMutex
	indexed *btree.Map[string, struct{}]
}

func NewSearchIndexSubscriber() *SearchIndexSubscriber {
	return &SearchIndexSubscriber{
		indexed: btree.NewMap[string, struct{}](0),
	}
}

func (s *SearchIndexSubscriber) Name() string {
	return "search-index"
}

// MarkIndexed records that the indexer has processed a path.
func (s *SearchIndexSubscriber) MarkIndexed(mountID, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.indexed.Set(indexKey(mountID, path), struct{}{})
}

// IsIndexed reports whether a path is currently considered indexed.
func (s *SearchIndexSubscriber) IsIndexed(mountID, path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.indexed.Get(indexKey(mountID, path))
	return exists
}

func (s *SearchIndexSubscriber) OnInvalidate(evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.InvalidateAll {
		s.indexed = btree.NewMap[string, struct{}](0)
		return nil
	}

	if evt.MountID == "" {
		return nil
	}

	if len(evt.Paths) == 0 && len(evt.DirPaths) == 0 {
		s.dropPrefix(evt.MountID, "/")
		return nil
	}

	for _, path := range evt.Paths {
		s.indexed.Delete(indexKey(evt.MountID, path))
	}
	for _, dir := range evt.DirPaths {
		s.dropPrefix(evt.MountID, dir)
	}

	return nil
}

func (s *SearchIndexSubscriber) dropPrefix(mountID, dir string) {
	root := data.NormalizePath(dir)
	rootKey := indexKey(mountID, root)

	var stale []string
	s.indexed.Ascend(rootKey, func(key string, _ struct{}) bool {
		if !strings.HasPrefix(key, strings.TrimSuffix(rootKey, "/")) {
			return false
		}

		if _, path, ok := cache.DecodeKey(key); ok && data.HasPathPrefix(path, root) {
			stale = append(stale, key)
		}
		return true
	})

	for _, key := range stale {
		s.indexed.Delete(key)
	}
}

// indexKey shares the cache key codec so mount ids containing the
// separator cannot bleed into neighbouring mounts.
func indexKey(mountID, path string) string {
	return cache.EncodeKey(mountID, path)
}
