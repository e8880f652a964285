package data

import "time"

// ObjectInfo describes a single entry returned by a driver listing.
type ObjectInfo struct {
	Name        string            `json:"name"`
	Size        int64             `json:"size"`
	IsDir       bool              `json:"is_dir"`
	ModTime     time.Time         `json:"mod_time"`
	CreateTime  time.Time         `json:"create_time,omitempty"`
	ETag        string            `json:"etag,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Clone returns a deep copy of the object info.
func (o *ObjectInfo) Clone() *ObjectInfo {
	if o == nil {
		return nil
	}

	dup := *o
	if o.Attributes != nil {
		dup.Attributes = make(map[string]string, len(o.Attributes))
		for k, v := range o.Attributes {
			dup.Attributes[k] = v
		}
	}

	return &dup
}

// ListResult is the outcome of a directory listing.
// NextCursor is an opaque driver-defined token; the gateway never
// interprets its contents.
type ListResult struct {
	Objects    []*ObjectInfo `json:"objects"`
	HasMore    bool          `json:"has_more,omitempty"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// Clone returns a deep copy of the result.
// Cached listings are always cloned on both write and read so callers
// can sort or enrich the returned slice without corrupting the cache.
func (r *ListResult) Clone() *ListResult {
	if r == nil {
		return nil
	}

	dup := &ListResult{
		HasMore:    r.HasMore,
		NextCursor: r.NextCursor,
	}
	if r.Objects != nil {
		dup.Objects = make([]*ObjectInfo, len(r.Objects))
		for i, obj := range r.Objects {
			dup.Objects[i] = obj.Clone()
		}
	}

	return dup
}

// ListOptions controls a single List call.
type ListOptions struct {
	// Refresh bypasses the directory cache and forces a backend fetch.
	Refresh bool

	// Cursor and Limit request one page of a paged listing.
	// Paged requests always bypass the cache.
	Cursor string
	Limit  int
}

// Paged reports whether the options describe a paged request.
func (o ListOptions) Paged() bool {
	return o.Cursor != "" || o.Limit > 0
}

// FolderSummary holds best-effort recursive aggregates for a directory.
// A missing summary means "unknown", never "empty".
type FolderSummary struct {
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}
