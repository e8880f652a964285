package data_test

import (
	"testing"

	"github.com/mwantia/vgate/data"
)

// TestNormalizePath verifies path normalization across the common
// shapes drivers and callers hand in.
func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":              "/",
		"/":             "/",
		"docs":          "/docs",
		"/docs/":        "/docs",
		"//docs//a.txt": "/docs/a.txt",
		"/docs/./a.txt": "/docs/a.txt",
		"/docs/../etc":  "/etc",
	}

	for input, expected := range cases {
		if got := data.NormalizePath(input); got != expected {
			t.Errorf("NormalizePath(%q): expected %q, got %q", input, expected, got)
		}
	}
}

// TestHasPathPrefix verifies the component boundary: '/a/bc' is not
// below '/a/b'.
func TestHasPathPrefix(t *testing.T) {
	cases := []struct {
		path     string
		prefix   string
		expected bool
	}{
		{"/a/b/c", "/a/b", true},
		{"/a/b", "/a/b", true},
		{"/a/bc", "/a/b", false},
		{"/a/b", "/", true},
		{"/", "/", true},
		{"/a", "/a/b", false},
	}

	for _, c := range cases {
		if got := data.HasPathPrefix(c.path, c.prefix); got != c.expected {
			t.Errorf("HasPathPrefix(%q, %q): expected %v, got %v", c.path, c.prefix, c.expected, got)
		}
	}
}

// TestToRelativePath verifies mount prefix stripping.
func TestToRelativePath(t *testing.T) {
	cases := []struct {
		path     string
		prefix   string
		expected string
	}{
		{"/docs/a.txt", "/docs", "a.txt"},
		{"/docs", "/docs", ""},
		{"/docs/a/b", "/", "docs/a/b"},
	}

	for _, c := range cases {
		if got := data.ToRelativePath(c.path, c.prefix); got != c.expected {
			t.Errorf("ToRelativePath(%q, %q): expected %q, got %q", c.path, c.prefix, c.expected, got)
		}
	}
}

// TestParentPaths verifies the ancestor chain runs from the path
// itself out to the root.
func TestParentPaths(t *testing.T) {
	parents := data.ParentPaths("/a/b/c")

	expected := []string{"/a/b/c", "/a/b", "/a", "/"}
	if len(parents) != len(expected) {
		t.Fatalf("Expected %d paths, got %d: %v", len(expected), len(parents), parents)
	}
	for i, p := range expected {
		if parents[i] != p {
			t.Errorf("Path %d: expected %q, got %q", i, p, parents[i])
		}
	}

	if parents := data.ParentPaths("/"); len(parents) != 1 || parents[0] != "/" {
		t.Errorf("Expected only root for root, got %v", parents)
	}
}
