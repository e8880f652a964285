package cache_test

import (
	"testing"
	"time"

	"github.com/mwantia/vgate/cache"
	"github.com/mwantia/vgate/data"
)

// TestURLCache_CloneIsolation verifies cached links are isolated from
// the caller's copy on both write and read.
func TestURLCache_CloneIsolation(t *testing.T) {
	uc, err := cache.NewURLCache()
	if err != nil {
		t.Fatalf("Failed to initialize url cache: %v", err)
	}
	defer uc.Close()

	link := &data.Link{
		URL:       "https://backend.example/signed/a.txt",
		Type:      data.LinkTypeSigned,
		ExpiresIn: time.Hour,
	}

	uc.Set("m1", "/a.txt", data.LinkArgs{}, link, time.Hour)
	uc.Wait()

	// Mutating the caller's link after caching must not leak in.
	link.URL = "https://attacker.example/swapped"

	cached, hit := uc.Get("m1", "/a.txt", data.LinkArgs{})
	if !hit {
		t.Fatalf("Expected cached link")
	}
	if cached.URL != "https://backend.example/signed/a.txt" {
		t.Fatalf("Expected cached link to be isolated from the set argument, got %q", cached.URL)
	}

	// Mutating a returned link must not corrupt the cached one.
	cached.URL = "https://attacker.example/scribbled"

	cached, hit = uc.Get("m1", "/a.txt", data.LinkArgs{})
	if !hit {
		t.Fatalf("Expected cached link")
	}
	if cached.URL != "https://backend.example/signed/a.txt" {
		t.Errorf("Expected cached link to be isolated from returned copies, got %q", cached.URL)
	}
}
