package cache

import (
	"fmt"

	"github.com/mwantia/vgate/data"
	"golang.org/x/sync/singleflight"
)

// FetchGroup de-duplicates concurrent backend listing fetches. At most
// one fetch per key is in flight; concurrent callers block on and share
// that one result. The key includes the refresh and paged flags so a
// forced refresh never piggybacks on a plain cached-mode fetch.
type FetchGroup struct {
	group singleflight.Group
}

func NewFetchGroup() *FetchGroup {
	return &FetchGroup{}
}

// FetchKey builds the coordination key for a listing fetch.
func FetchKey(mountID, path string, opts data.ListOptions) string {
	return fmt.Sprintf("%s|refresh=%t|paged=%t|cursor=%s|limit=%d",
		EncodeKey(mountID, path), opts.Refresh, opts.Paged(), opts.Cursor, opts.Limit)
}

// Fetch runs fn unless a fetch for the same key is already in flight,
// in which case it waits for and shares that result. The shared flag
// reports whether the result was served by another caller's flight.
// Results are shared by pointer; callers must clone before handing the
// listing out.
func (fg *FetchGroup) Fetch(key string, fn func() (*data.ListResult, error)) (*data.ListResult, bool, error) {
	value, err, shared := fg.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return nil, shared, err
	}

	result, _ := value.(*data.ListResult)
	return result, shared, nil
}
