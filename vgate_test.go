package vgate_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mwantia/vgate"
	"github.com/mwantia/vgate/bus"
	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/data/errors"
	"github.com/mwantia/vgate/driver"
	"github.com/mwantia/vgate/driver/memory"
	"github.com/mwantia/vgate/log"
	"github.com/mwantia/vgate/mountstore"
)

// countingDriver wraps the memory driver and counts backend listing
// calls, so tests can tell cache hits from backend fetches.
type countingDriver struct {
	*memory.MemoryDriver
	lists atomic.Int32
}

func (cd *countingDriver) List(ctx context.Context, subPath string, opts data.ListOptions) (*data.ListResult, error) {
	cd.lists.Add(1)
	return cd.MemoryDriver.List(ctx, subPath, opts)
}

// linkDriver wraps the memory driver with a scriptable direct-link
// implementation.
type linkDriver struct {
	*memory.MemoryDriver
	directErr error
}

func (ld *linkDriver) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		Capabilities: []driver.Capability{
			driver.CapReader,
			driver.CapWriter,
			driver.CapDirectLink,
			driver.CapProxy,
		},
	}
}

func (ld *linkDriver) DirectLink(ctx context.Context, subPath string, args data.LinkArgs) (*data.Link, error) {
	if ld.directErr != nil {
		return nil, ld.directErr
	}

	return &data.Link{
		URL:       "https://backend.example/signed/" + subPath,
		Type:      data.LinkTypeSigned,
		ExpiresIn: time.Hour,
	}, nil
}

// TestGateway_ResolveLongestPrefix verifies the deepest matching mount
// wins and unmounted paths fail with ErrNotMounted.
func TestGateway_ResolveLongestPrefix(t *testing.T) {
	ctx := t.Context()
	g, err := vgate.NewGateway(vgate.WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("Failed to initialize gateway: %v", err)
	}
	defer g.Close(ctx)

	mounts := []*data.Mount{
		{ID: "docs", Prefix: "/docs", Type: "memory"},
		{ID: "archive", Prefix: "/docs/archive", Type: "memory"},
	}
	for _, mnt := range mounts {
		if err := g.AddMount(ctx, mnt); err != nil {
			t.Fatalf("Failed to add mount '%s': %v", mnt.ID, err)
		}
	}

	_, mnt, subPath, err := g.Resolve(ctx, "/docs/archive/2024/q1.pdf")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if mnt.ID != "archive" {
		t.Errorf("Expected the deeper mount to win, got '%s'", mnt.ID)
	}
	if subPath != "2024/q1.pdf" {
		t.Errorf("Expected sub-path '2024/q1.pdf', got %q", subPath)
	}

	_, mnt, _, err = g.Resolve(ctx, "/docs/readme.md")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if mnt.ID != "docs" {
		t.Errorf("Expected the docs mount, got '%s'", mnt.ID)
	}

	if _, _, _, err := g.Resolve(ctx, "/media/x.jpg"); !errors.Is(err, data.ErrNotMounted) {
		t.Errorf("Expected ErrNotMounted, got %v", err)
	}

	duplicate := &data.Mount{ID: "other", Prefix: "/docs", Type: "memory"}
	if err := g.AddMount(ctx, duplicate); !errors.Is(err, data.ErrAlreadyMounted) {
		t.Errorf("Expected ErrAlreadyMounted, got %v", err)
	}
}

// TestGateway_ListCaching verifies listings are served from cache
// within the TTL, refresh bypasses and re-primes it, and empty
// listings are never cached.
func TestGateway_ListCaching(t *testing.T) {
	ctx := t.Context()

	var drv *countingDriver
	factory := func(ctx context.Context, mount *data.Mount) (driver.Driver, error) {
		drv = &countingDriver{MemoryDriver: memory.New()}
		return drv, nil
	}

	g, err := vgate.NewGateway(
		vgate.WithLogger(log.Discard()),
		vgate.WithDriver("counting", factory),
	)
	if err != nil {
		t.Fatalf("Failed to initialize gateway: %v", err)
	}
	defer g.Close(ctx)

	mnt := &data.Mount{ID: "files", Prefix: "/files", Type: "counting", CacheTTL: time.Minute}
	if err := g.AddMount(ctx, mnt); err != nil {
		t.Fatalf("Failed to add mount: %v", err)
	}

	// Empty listings hit the backend every time.
	for i := range 2 {
		result, err := g.List(ctx, "/files", data.ListOptions{})
		if err != nil {
			t.Fatalf("List %d failed: %v", i, err)
		}
		if len(result.Objects) != 0 {
			t.Fatalf("Expected empty listing, got %d objects", len(result.Objects))
		}
	}
	if got := drv.lists.Load(); got != 2 {
		t.Fatalf("Expected 2 backend calls for empty listings, got %d", got)
	}

	// Seed the backend out of band; the gateway has no cached entry
	// yet, so the next listing fetches and primes the cache.
	if err := drv.Upload(ctx, "a.txt", bytes.NewReader([]byte("a")), 1); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	result, err := g.List(ctx, "/files", data.ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(result.Objects) != 1 {
		t.Fatalf("Expected 1 object, got %d", len(result.Objects))
	}

	if _, err := g.List(ctx, "/files", data.ListOptions{}); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if got := drv.lists.Load(); got != 3 {
		t.Errorf("Expected the second listing to be a cache hit, got %d backend calls", got)
	}

	// An out-of-band change stays invisible until refresh.
	if err := drv.Upload(ctx, "b.txt", bytes.NewReader([]byte("b")), 1); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	result, _ = g.List(ctx, "/files", data.ListOptions{})
	if len(result.Objects) != 1 {
		t.Errorf("Expected the stale cached listing, got %d objects", len(result.Objects))
	}

	result, err = g.List(ctx, "/files", data.ListOptions{Refresh: true})
	if err != nil {
		t.Fatalf("Refresh listing failed: %v", err)
	}
	if len(result.Objects) != 2 {
		t.Errorf("Expected 2 objects after refresh, got %d", len(result.Objects))
	}
	if got := drv.lists.Load(); got != 4 {
		t.Errorf("Expected refresh to hit the backend, got %d calls", got)
	}

	// Refresh re-primed the cache.
	result, _ = g.List(ctx, "/files", data.ListOptions{})
	if len(result.Objects) != 2 {
		t.Errorf("Expected refreshed cache entry, got %d objects", len(result.Objects))
	}
	if got := drv.lists.Load(); got != 4 {
		t.Errorf("Expected a cache hit after refresh, got %d calls", got)
	}
}

// TestGateway_EmptyListingDropsSummary verifies an empty listing
// invalidates the cached folder summary along with the listing
// subtree, so a directory emptied out of band stops reporting its old
// aggregate size.
func TestGateway_EmptyListingDropsSummary(t *testing.T) {
	ctx := t.Context()

	var drv *countingDriver
	factory := func(ctx context.Context, mount *data.Mount) (driver.Driver, error) {
		drv = &countingDriver{MemoryDriver: memory.New()}
		return drv, nil
	}

	g, err := vgate.NewGateway(
		vgate.WithLogger(log.Discard()),
		vgate.WithDriver("counting", factory),
	)
	if err != nil {
		t.Fatalf("Failed to initialize gateway: %v", err)
	}
	defer g.Close(ctx)

	mnt := &data.Mount{ID: "files", Prefix: "/files", Type: "counting", CacheTTL: time.Minute}
	if err := g.AddMount(ctx, mnt); err != nil {
		t.Fatalf("Failed to add mount: %v", err)
	}

	// First listing builds the driver instance for out-of-band access.
	if _, err := g.List(ctx, "/files", data.ListOptions{}); err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if err := drv.Upload(ctx, "a.txt", bytes.NewReader([]byte("a")), 1); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	summary, err := g.Summary(ctx, "/files")
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.Size != 1 {
		t.Fatalf("Expected summary size 1, got %d", summary.Size)
	}

	// Remove the object out of band; the refreshed empty listing must
	// drop the cached summary along with the listing subtree.
	if err := drv.Remove(ctx, "a.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	result, err := g.List(ctx, "/files", data.ListOptions{Refresh: true})
	if err != nil {
		t.Fatalf("Refresh listing failed: %v", err)
	}
	if len(result.Objects) != 0 {
		t.Fatalf("Expected empty listing after removal, got %d objects", len(result.Objects))
	}

	summary, err = g.Summary(ctx, "/files")
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.Size != 0 {
		t.Errorf("Expected summary size 0 after empty listing, got %d", summary.Size)
	}
}

// TestGateway_InvalidateRefetches verifies a published invalidation
// forces the next listing back to the backend.
func TestGateway_InvalidateRefetches(t *testing.T) {
	ctx := t.Context()

	var drv *countingDriver
	factory := func(ctx context.Context, mount *data.Mount) (driver.Driver, error) {
		drv = &countingDriver{MemoryDriver: memory.New()}
		return drv, nil
	}

	g, err := vgate.NewGateway(
		vgate.WithLogger(log.Discard()),
		vgate.WithDriver("counting", factory),
	)
	if err != nil {
		t.Fatalf("Failed to initialize gateway: %v", err)
	}
	defer g.Close(ctx)

	mnt := &data.Mount{ID: "files", Prefix: "/files", Type: "counting", CacheTTL: time.Minute}
	if err := g.AddMount(ctx, mnt); err != nil {
		t.Fatalf("Failed to add mount: %v", err)
	}

	if err := g.Upload(ctx, "/files/a.txt", bytes.NewReader([]byte("a")), 1); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	// Upload publishes its invalidation asynchronously; let it land
	// before priming the cache.
	time.Sleep(50 * time.Millisecond)

	if _, err := g.List(ctx, "/files", data.ListOptions{}); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	calls := drv.lists.Load()

	if _, err := g.List(ctx, "/files", data.ListOptions{}); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if drv.lists.Load() != calls {
		t.Fatalf("Expected a cache hit before invalidation")
	}

	g.Invalidate(bus.Event{
		MountID: "files",
		Paths:   []string{"/files/a.txt"},
		Reason:  "out-of-band-change",
	})

	if _, err := g.List(ctx, "/files", data.ListOptions{}); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if drv.lists.Load() != calls+1 {
		t.Errorf("Expected the listing to be refetched after invalidation")
	}
}

// TestGateway_LinkPolicy verifies the resolution ladder: direct when
// available, proxy as fallback on direct failure, and forced proxy as
// a terminal choice.
func TestGateway_LinkPolicy(t *testing.T) {
	ctx := t.Context()

	var link *linkDriver
	factory := func(ctx context.Context, mount *data.Mount) (driver.Driver, error) {
		md := memory.New()
		md.ProxyBase = "https://gw.example"
		link = &linkDriver{MemoryDriver: md}
		return link, nil
	}

	g, err := vgate.NewGateway(
		vgate.WithLogger(log.Discard()),
		vgate.WithDriver("linked", factory),
	)
	if err != nil {
		t.Fatalf("Failed to initialize gateway: %v", err)
	}
	defer g.Close(ctx)

	mounts := []*data.Mount{
		{ID: "files", Prefix: "/files", Type: "linked"},
		{ID: "proxied", Prefix: "/proxied", Type: "memory", ForceProxy: true,
			Config: map[string]string{"proxy_base": "https://gw.example"}},
	}
	for _, mnt := range mounts {
		if err := g.AddMount(ctx, mnt); err != nil {
			t.Fatalf("Failed to add mount '%s': %v", mnt.ID, err)
		}
	}

	for _, path := range []string{"/files/a.txt", "/files/b.txt", "/proxied/c.txt"} {
		if err := g.Upload(ctx, path, bytes.NewReader([]byte("x")), 1); err != nil {
			t.Fatalf("Upload %s failed: %v", path, err)
		}
	}

	resolved, err := g.Link(ctx, "/files/a.txt", data.LinkArgs{})
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if resolved.Type != data.LinkTypeSigned {
		t.Errorf("Expected a signed link, got %s", resolved.Type)
	}

	// A forced proxy never attempts the direct link.
	resolved, err = g.Link(ctx, "/files/a.txt", data.LinkArgs{ForceProxy: true})
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if resolved.Type != data.LinkTypeProxy {
		t.Errorf("Expected a proxy link under ForceProxy, got %s", resolved.Type)
	}

	// A failing direct link degrades to the proxy URL with no error.
	link.directErr = fmt.Errorf("backend credentials expired")
	resolved, err = g.Link(ctx, "/files/b.txt", data.LinkArgs{})
	if err != nil {
		t.Fatalf("Expected proxy fallback, got error: %v", err)
	}
	if resolved.Type != data.LinkTypeProxy {
		t.Errorf("Expected proxy fallback, got %s", resolved.Type)
	}
	if !strings.HasPrefix(resolved.URL, "https://gw.example") {
		t.Errorf("Expected a gateway URL, got %q", resolved.URL)
	}

	// Mount-level ForceProxy applies to every request on the mount.
	resolved, err = g.Link(ctx, "/proxied/c.txt", data.LinkArgs{})
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if resolved.Type != data.LinkTypeProxy {
		t.Errorf("Expected a proxy link on a ForceProxy mount, got %s", resolved.Type)
	}
}

// TestGateway_MountStore verifies mounts load from the store on
// startup and survive a reload.
func TestGateway_MountStore(t *testing.T) {
	ctx := t.Context()

	store := mountstore.NewMemoryStore()
	if err := store.Save(ctx, &data.Mount{ID: "docs", Prefix: "/docs", Type: "memory"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	g, err := vgate.NewGateway(
		vgate.WithLogger(log.Discard()),
		vgate.WithMountStore(store),
		vgate.WithDefaultCacheTTL(time.Minute),
	)
	if err != nil {
		t.Fatalf("Failed to initialize gateway: %v", err)
	}
	defer g.Close(ctx)

	_, mnt, _, err := g.Resolve(ctx, "/docs/a.txt")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if mnt.ID != "docs" {
		t.Errorf("Expected the persisted mount, got '%s'", mnt.ID)
	}
	if mnt.CacheTTL != time.Minute {
		t.Errorf("Expected the default TTL to apply, got %v", mnt.CacheTTL)
	}

	if err := store.Save(ctx, &data.Mount{ID: "media", Prefix: "/media", Type: "memory"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	version := g.MountsVersion()
	if err := g.RefreshMounts(ctx); err != nil {
		t.Fatalf("RefreshMounts failed: %v", err)
	}
	if g.MountsVersion() <= version {
		t.Errorf("Expected the mounts version to advance on reload")
	}

	if _, _, _, err := g.Resolve(ctx, "/media/x.jpg"); err != nil {
		t.Errorf("Expected the new mount to resolve: %v", err)
	}

	if err := g.RemoveMount(ctx, "media"); err != nil {
		t.Fatalf("RemoveMount failed: %v", err)
	}
	if _, err := store.Get(ctx, "media"); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected the removal to reach the store, got %v", err)
	}
}
