package ledger_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/data/errors"
	"github.com/mwantia/vgate/ledger"
	"github.com/mwantia/vgate/ledger/sqlite"
)

type TestStoreFactory func(tst *testing.T) (ledger.Store, error)

func GetTestStoreFactories() map[string]TestStoreFactory {
	return map[string]TestStoreFactory{
		"memory": func(tst *testing.T) (ledger.Store, error) {
			return ledger.NewMemoryStore(), nil
		},
		"sqlite": func(tst *testing.T) (ledger.Store, error) {
			return sqlite.NewSQLiteStore(":memory:")
		},
	}
}

func testSession(id string) *ledger.Session {
	now := time.Now().Truncate(time.Second)
	return &ledger.Session{
		ID:        id,
		MountID:   "m1",
		Path:      "/docs/video.mp4",
		FileName:  "video.mp4",
		FileSize:  1 << 24,
		PartSize:  1 << 22,
		PartCount: 4,

		StorageType: "s3",
		Strategy:    "server_can_list",

		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TestAllStores_Sessions verifies session create, get, touch, list and
// delete across all ledger implementations.
func TestAllStores_Sessions(t *testing.T) {
	factories := GetTestStoreFactories()

	for name, factory := range factories {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			store, err := factory(tst)
			if err != nil {
				tst.Fatalf("Failed to create store: %v", err)
			}

			if err := store.Open(ctx); err != nil {
				tst.Fatalf("Failed to open store: %v", err)
			}
			defer store.Close(ctx)

			session := testSession("s-1")
			if err := store.CreateSession(ctx, session); err != nil {
				tst.Fatalf("CreateSession failed: %v", err)
			}

			got, err := store.GetSession(ctx, "s-1")
			if err != nil {
				tst.Fatalf("GetSession failed: %v", err)
			}
			if got.FileName != "video.mp4" || got.PartCount != 4 {
				tst.Errorf("Expected session fields to round-trip, got %+v", got)
			}

			if _, err := store.GetSession(ctx, "missing"); !errors.Is(err, data.ErrSessionNotFound) {
				tst.Errorf("Expected ErrSessionNotFound, got %v", err)
			}

			later := session.UpdatedAt.Add(time.Hour)
			if err := store.TouchSession(ctx, "s-1", later); err != nil {
				tst.Fatalf("TouchSession failed: %v", err)
			}
			got, _ = store.GetSession(ctx, "s-1")
			if got.UpdatedAt.Unix() != later.Unix() {
				tst.Errorf("Expected UpdatedAt %v, got %v", later, got.UpdatedAt)
			}

			other := testSession("s-2")
			other.Path = "/docs/other.mp4"
			if err := store.CreateSession(ctx, other); err != nil {
				tst.Fatalf("CreateSession failed: %v", err)
			}

			sessions, err := store.ListSessionsByPath(ctx, "m1", "/docs/video.mp4")
			if err != nil {
				tst.Fatalf("ListSessionsByPath failed: %v", err)
			}
			if len(sessions) != 1 || sessions[0].ID != "s-1" {
				tst.Errorf("Expected only s-1 for the path, got %v", sessions)
			}

			if err := store.DeleteSessions(ctx, []string{"s-1", "s-2"}); err != nil {
				tst.Fatalf("DeleteSessions failed: %v", err)
			}
			if _, err := store.GetSession(ctx, "s-1"); !errors.Is(err, data.ErrSessionNotFound) {
				tst.Errorf("Expected session to be deleted, got %v", err)
			}
		})
	}
}

// TestAllStores_PartUpsert verifies part records are unique per
// (upload, part number) and that re-acknowledgements win.
func TestAllStores_PartUpsert(t *testing.T) {
	factories := GetTestStoreFactories()

	for name, factory := range factories {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			store, err := factory(tst)
			if err != nil {
				tst.Fatalf("Failed to create store: %v", err)
			}

			if err := store.Open(ctx); err != nil {
				tst.Fatalf("Failed to open store: %v", err)
			}
			defer store.Close(ctx)

			if err := store.CreateSession(ctx, testSession("s-1")); err != nil {
				tst.Fatalf("CreateSession failed: %v", err)
			}

			now := time.Now().Truncate(time.Second)
			for no := 3; no >= 1; no-- {
				part := &ledger.Part{
					ID:       fmt.Sprintf("p-%d", no),
					UploadID: "s-1",
					PartNo:   no,
					Size:     1 << 22,
					Checksum: "aaaa",
					Status:   ledger.PartStatusUploaded,

					CreatedAt: now,
					UpdatedAt: now,
				}
				if err := store.UpsertPart(ctx, part); err != nil {
					tst.Fatalf("UpsertPart failed: %v", err)
				}
			}

			// Re-acknowledge part 2 with a new checksum.
			retry := &ledger.Part{
				ID:       "p-retry",
				UploadID: "s-1",
				PartNo:   2,
				Size:     1 << 22,
				Checksum: "bbbb",
				Status:   ledger.PartStatusUploaded,

				CreatedAt: now.Add(time.Minute),
				UpdatedAt: now.Add(time.Minute),
			}
			if err := store.UpsertPart(ctx, retry); err != nil {
				tst.Fatalf("UpsertPart retry failed: %v", err)
			}

			parts, err := store.ListParts(ctx, "s-1")
			if err != nil {
				tst.Fatalf("ListParts failed: %v", err)
			}
			if len(parts) != 3 {
				tst.Fatalf("Expected 3 parts, got %d", len(parts))
			}

			for i, part := range parts {
				if part.PartNo != i+1 {
					tst.Errorf("Expected parts ordered by number, got %d at %d", part.PartNo, i)
				}
			}

			if parts[1].Checksum != "bbbb" {
				tst.Errorf("Expected the retry to win, got checksum %q", parts[1].Checksum)
			}
			if parts[1].ID != "p-2" {
				tst.Errorf("Expected the original row id to survive the upsert, got %q", parts[1].ID)
			}

			if err := store.DeleteParts(ctx, []string{"s-1"}); err != nil {
				tst.Fatalf("DeleteParts failed: %v", err)
			}
			parts, _ = store.ListParts(ctx, "s-1")
			if len(parts) != 0 {
				tst.Errorf("Expected no parts after delete, got %d", len(parts))
			}
		})
	}
}

// TestAllStores_SweepExpired verifies the age sweep reclaims stale
// sessions together with their parts.
func TestAllStores_SweepExpired(t *testing.T) {
	factories := GetTestStoreFactories()

	for name, factory := range factories {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			store, err := factory(tst)
			if err != nil {
				tst.Fatalf("Failed to create store: %v", err)
			}

			if err := store.Open(ctx); err != nil {
				tst.Fatalf("Failed to open store: %v", err)
			}
			defer store.Close(ctx)

			stale := testSession("s-old")
			stale.UpdatedAt = time.Now().Add(-48 * time.Hour)
			if err := store.CreateSession(ctx, stale); err != nil {
				tst.Fatalf("CreateSession failed: %v", err)
			}
			if err := store.UpsertPart(ctx, &ledger.Part{
				ID:       "p-1",
				UploadID: "s-old",
				PartNo:   1,
				Status:   ledger.PartStatusUploaded,
			}); err != nil {
				tst.Fatalf("UpsertPart failed: %v", err)
			}

			fresh := testSession("s-new")
			if err := store.CreateSession(ctx, fresh); err != nil {
				tst.Fatalf("CreateSession failed: %v", err)
			}

			reclaimed, err := store.SweepExpired(ctx, time.Now().Add(-24*time.Hour))
			if err != nil {
				tst.Fatalf("SweepExpired failed: %v", err)
			}
			if reclaimed != 1 {
				tst.Errorf("Expected 1 reclaimed session, got %d", reclaimed)
			}

			if _, err := store.GetSession(ctx, "s-old"); !errors.Is(err, data.ErrSessionNotFound) {
				tst.Errorf("Expected stale session to be gone, got %v", err)
			}
			if parts, _ := store.ListParts(ctx, "s-old"); len(parts) != 0 {
				tst.Errorf("Expected stale parts to be gone, got %d", len(parts))
			}
			if _, err := store.GetSession(ctx, "s-new"); err != nil {
				tst.Errorf("Expected fresh session to survive: %v", err)
			}
		})
	}
}
