package cache

import (
	"net/url"
	"strings"

	"github.com/mwantia/vgate/data"
)

// Cache keys are "<escaped mount id>:<normalized path>". The mount id
// is query-escaped, which escapes ':' itself, so the first ':' in a key
// is always the separator; the path is stored verbatim so ordered
// prefix scans over the key space line up with path subtrees. A key
// must decode back to the exact mount id and normalized path used to
// create it, otherwise subtree invalidation would need a side index.

// EncodeKey builds the cache key for a mount-scoped directory path.
func EncodeKey(mountID, path string) string {
	return url.QueryEscape(mountID) + ":" + data.NormalizePath(path)
}

// DecodeKey splits a cache key back into mount id and normalized path.
func DecodeKey(key string) (mountID, path string, ok bool) {
	idx := strings.Index(key, ":")
	if idx < 0 {
		return "", "", false
	}

	mountID, err := url.QueryUnescape(key[:idx])
	if err != nil {
		return "", "", false
	}

	return mountID, key[idx+1:], true
}

// mountPrefix is the key prefix shared by all entries of one mount.
func mountPrefix(mountID string) string {
	return url.QueryEscape(mountID) + ":"
}
