package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/vgate/data"
	"github.com/tidwall/btree"
)

// MemoryStore is an in-memory ledger for tests and single-process use.
// Parts are keyed "<upload id>|<part no>" in an ordered map so per-
// session scans are contiguous.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	parts    *btree.Map[string, *Part]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		parts:    btree.NewMap[string, *Part](0),
	}
}

func partKey(uploadID string, partNo int) string {
	return fmt.Sprintf("%s|%08d", uploadID, partNo)
}

func (ms *MemoryStore) Open(ctx context.Context) error  { return nil }
func (ms *MemoryStore) Close(ctx context.Context) error { return nil }

func (ms *MemoryStore) CreateSession(ctx context.Context, session *Session) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.sessions[session.ID]; exists {
		return data.ErrExist
	}

	dup := *session
	ms.sessions[session.ID] = &dup
	return nil
}

func (ms *MemoryStore) GetSession(ctx context.Context, id string) (*Session, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	session, exists := ms.sessions[id]
	if !exists {
		return nil, data.ErrSessionNotFound
	}

	dup := *session
	return &dup, nil
}

func (ms *MemoryStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	session, exists := ms.sessions[id]
	if !exists {
		return data.ErrSessionNotFound
	}

	session.UpdatedAt = at
	return nil
}

func (ms *MemoryStore) ListSessionsByPath(ctx context.Context, mountID, path string) ([]*Session, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	path = data.NormalizePath(path)

	var sessions []*Session
	for _, session := range ms.sessions {
		if session.MountID == mountID && data.NormalizePath(session.Path) == path {
			dup := *session
			sessions = append(sessions, &dup)
		}
	}

	return sessions, nil
}

func (ms *MemoryStore) DeleteSessions(ctx context.Context, ids []string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, id := range ids {
		delete(ms.sessions, id)
		ms.deletePartsLocked(id)
	}

	return nil
}

func (ms *MemoryStore) UpsertPart(ctx context.Context, part *Part) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	key := partKey(part.UploadID, part.PartNo)
	dup := *part

	if prior, exists := ms.parts.Get(key); exists {
		dup.ID = prior.ID
		dup.CreatedAt = prior.CreatedAt
	}

	ms.parts.Set(key, &dup)
	return nil
}

func (ms *MemoryStore) ListParts(ctx context.Context, uploadID string) ([]*Part, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	prefix := uploadID + "|"

	var parts []*Part
	ms.parts.Ascend(prefix, func(key string, part *Part) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}

		dup := *part
		parts = append(parts, &dup)
		return true
	})

	return parts, nil
}

func (ms *MemoryStore) DeleteParts(ctx context.Context, uploadIDs []string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, chunk := range Chunk(uploadIDs) {
		for _, id := range chunk {
			ms.deletePartsLocked(id)
		}
	}

	return nil
}

func (ms *MemoryStore) SweepExpired(ctx context.Context, cutoff time.Time) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var expired []string
	for id, session := range ms.sessions {
		if session.UpdatedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		delete(ms.sessions, id)
		ms.deletePartsLocked(id)
	}

	return len(expired), nil
}

func (ms *MemoryStore) deletePartsLocked(uploadID string) {
	prefix := uploadID + "|"

	var stale []string
	ms.parts.Ascend(prefix, func(key string, _ *Part) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}

		stale = append(stale, key)
		return true
	})

	for _, key := range stale {
		ms.parts.Delete(key)
	}
}
