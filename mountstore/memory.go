package mountstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/vgate/data"
	"github.com/tidwall/btree"
)

// MemoryStore keeps mount configurations in memory, ordered by id.
// Used by tests and by embedders managing mounts programmatically.
type MemoryStore struct {
	mu     sync.RWMutex
	mounts *btree.Map[string, *data.Mount]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mounts: btree.NewMap[string, *data.Mount](0),
	}
}

func (ms *MemoryStore) Load(ctx context.Context) ([]*data.Mount, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	mounts := make([]*data.Mount, 0, ms.mounts.Len())
	ms.mounts.Ascend("", func(_ string, mnt *data.Mount) bool {
		mounts = append(mounts, mnt.Clone())
		return true
	})

	return mounts, nil
}

func (ms *MemoryStore) Get(ctx context.Context, id string) (*data.Mount, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	mnt, exists := ms.mounts.Get(id)
	if !exists {
		return nil, data.ErrNotExist
	}

	return mnt.Clone(), nil
}

func (ms *MemoryStore) Save(ctx context.Context, mount *data.Mount) error {
	if mount.ID == "" || strings.TrimSpace(mount.Prefix) == "" {
		return data.ErrInvalid
	}

	dup := mount.Clone()
	dup.Prefix = data.NormalizePath(dup.Prefix)
	dup.UpdatedAt = time.Now()
	if dup.CreatedAt.IsZero() {
		dup.CreatedAt = dup.UpdatedAt
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.mounts.Set(dup.ID, dup)
	return nil
}

func (ms *MemoryStore) Delete(ctx context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.mounts.Delete(id)
	return nil
}
