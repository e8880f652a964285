package data

import (
	"path"
	"strings"
)

// NormalizePath cleans a virtual path into the canonical form used as a
// cache and mount key: leading slash, no trailing slash, no duplicate
// separators. Root normalizes to "/".
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	cleaned := path.Clean(p)
	if cleaned == "." {
		return "/"
	}

	return cleaned
}

// IsRoot reports whether the normalized path is the root directory.
func IsRoot(p string) bool {
	return NormalizePath(p) == "/"
}

// ToRelativePath strips prefix from p and any leading slashes.
// The result is the driver-facing sub-path.
func ToRelativePath(p, prefix string) string {
	p = NormalizePath(p)
	prefix = NormalizePath(prefix)

	if prefix == "/" {
		return strings.TrimPrefix(p, "/")
	}

	if p == prefix {
		return ""
	}

	rel := strings.TrimPrefix(p, prefix)
	return strings.TrimPrefix(rel, "/")
}

// HasPathPrefix reports whether p equals prefix or sits underneath it.
// "/a/bc" is not under "/a/b".
func HasPathPrefix(p, prefix string) bool {
	p = NormalizePath(p)
	prefix = NormalizePath(prefix)

	if prefix == "/" {
		return true
	}

	if p == prefix {
		return true
	}

	return strings.HasPrefix(p, prefix+"/")
}

// ParentPath returns the parent directory of a normalized path.
// The parent of root is root.
func ParentPath(p string) string {
	p = NormalizePath(p)
	if p == "/" {
		return "/"
	}

	return NormalizePath(path.Dir(p))
}

// ParentPaths returns p and every ancestor up to and including root,
// ordered from p outward.
func ParentPaths(p string) []string {
	p = NormalizePath(p)

	paths := []string{p}
	for p != "/" {
		p = ParentPath(p)
		paths = append(paths, p)
	}

	return paths
}

// JoinPath joins a normalized base with a child element.
func JoinPath(base, name string) string {
	return NormalizePath(path.Join(NormalizePath(base), name))
}
