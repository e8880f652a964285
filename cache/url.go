package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/mwantia/vgate/data"
)

// URLCache keeps recently resolved links so repeated link requests for
// the same object skip the driver round-trip. Entries expire with the
// link itself and are dropped by invalidation events for the path.
type URLCache struct {
	cache *ristretto.Cache
}

func NewURLCache() (*URLCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &URLCache{cache: cache}, nil
}

func urlKey(mountID, path string, args data.LinkArgs) string {
	return fmt.Sprintf("%s|dl=%t|proxy=%t", EncodeKey(mountID, path), args.ForceDownload, args.ForceProxy)
}

func (uc *URLCache) Get(mountID, path string, args data.LinkArgs) (*data.Link, bool) {
	value, exists := uc.cache.Get(urlKey(mountID, path, args))
	if !exists {
		return nil, false
	}

	link, ok := value.(*data.Link)
	if !ok {
		return nil, false
	}

	// Callers own the returned link; the cached one stays untouched.
	dup := *link
	return &dup, true
}

// Set caches a link for the given lifetime. Links without an expiry
// are not cached; the driver may revoke them at any time.
func (uc *URLCache) Set(mountID, path string, args data.LinkArgs, link *data.Link, ttl time.Duration) {
	if link == nil || ttl <= 0 {
		return
	}

	dup := *link
	cost := int64(len(dup.URL)) + 64
	uc.cache.SetWithTTL(urlKey(mountID, path, args), &dup, cost, ttl)
}

// Invalidate drops all flag variants of the link for one path.
func (uc *URLCache) Invalidate(mountID, path string) {
	for _, download := range []bool{false, true} {
		for _, proxy := range []bool{false, true} {
			uc.cache.Del(urlKey(mountID, path, data.LinkArgs{
				ForceDownload: download,
				ForceProxy:    proxy,
			}))
		}
	}
}

// Wait blocks until buffered sets have been applied.
func (uc *URLCache) Wait() {
	uc.cache.Wait()
}

// InvalidateAll drops every cached link. Ristretto cannot enumerate
// keys, so mount-scoped and subtree invalidation degrade to this.
func (uc *URLCache) InvalidateAll() {
	uc.cache.Clear()
}

func (uc *URLCache) Close() {
	uc.cache.Close()
}
