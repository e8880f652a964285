// Package memory provides an in-memory driver. It supports reading,
// writing, proxy links and multipart uploads with the server_records
// strategy; since it cannot enumerate its own in-flight parts, resume
// state lives entirely in the ledger. Used heavily by tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/driver"
	"github.com/tidwall/btree"
)

const DriverType = "memory"

type object struct {
	info    data.ObjectInfo
	content []byte
}

type pendingUpload struct {
	args      driver.InitMultipartArgs
	createdAt time.Time
}

// MemoryDriver keeps the whole tree in an ordered map keyed by
// normalized path, so directory listings are contiguous scans.
type MemoryDriver struct {
	mu      sync.RWMutex
	objects *btree.Map[string, *object]
	uploads map[string]*pendingUpload

	// ProxyBase prefixes generated proxy URLs; tests leave it empty.
	ProxyBase string
}

func New() *MemoryDriver {
	return &MemoryDriver{
		objects: btree.NewMap[string, *object](0),
		uploads: make(map[string]*pendingUpload),
	}
}

// Factory adapts New to the driver registry.
func Factory(ctx context.Context, mount *data.Mount) (driver.Driver, error) {
	drv := New()
	drv.ProxyBase = mount.Config["proxy_base"]
	return drv, nil
}

func (*MemoryDriver) Type() string {
	return DriverType
}

func (md *MemoryDriver) Open(ctx context.Context) error {
	return nil
}

func (md *MemoryDriver) Close(ctx context.Context) error {
	md.mu.Lock()
	defer md.mu.Unlock()

	md.objects.Clear()
	for id := range md.uploads {
		delete(md.uploads, id)
	}

	return nil
}

func (md *MemoryDriver) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		Capabilities: []driver.Capability{
			driver.CapReader,
			driver.CapWriter,
			driver.CapMultipart,
			driver.CapProxy,
		},
	}
}

func (md *MemoryDriver) List(ctx context.Context, subPath string, opts data.ListOptions) (*data.ListResult, error) {
	md.mu.RLock()
	defer md.mu.RUnlock()

	dir := data.NormalizePath(subPath)
	if dir != "/" {
		if obj, exists := md.objects.Get(dir); exists && !obj.info.IsDir {
			return nil, data.ErrNotDirectory
		}
	}

	result := &data.ListResult{}
	md.scanChildren(dir, func(obj *object) {
		result.Objects = append(result.Objects, obj.info.Clone())
	})

	return result, nil
}

func (md *MemoryDriver) Stat(ctx context.Context, subPath string) (*data.ObjectInfo, error) {
	md.mu.RLock()
	defer md.mu.RUnlock()

	obj, exists := md.objects.Get(data.NormalizePath(subPath))
	if !exists {
		return nil, data.ErrNotExist
	}

	return obj.info.Clone(), nil
}

func (md *MemoryDriver) OpenRead(ctx context.Context, subPath string) (io.ReadCloser, error) {
	md.mu.RLock()
	defer md.mu.RUnlock()

	obj, exists := md.objects.Get(data.NormalizePath(subPath))
	if !exists {
		return nil, data.ErrNotExist
	}
	if obj.info.IsDir {
		return nil, data.ErrIsDirectory
	}

	return io.NopCloser(bytes.NewReader(obj.content)), nil
}

func (md *MemoryDriver) Exists(ctx context.Context, subPath string) (bool, error) {
	md.mu.RLock()
	defer md.mu.RUnlock()

	_, exists := md.objects.Get(data.NormalizePath(subPath))
	return exists, nil
}

func (md *MemoryDriver) Upload(ctx context.Context, subPath string, reader io.Reader, size int64) error {
	content, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	md.mu.Lock()
	defer md.mu.Unlock()

	md.put(data.NormalizePath(subPath), content, false)
	return nil
}

func (md *MemoryDriver) Update(ctx context.Context, subPath string, reader io.Reader, size int64) error {
	path := data.NormalizePath(subPath)

	md.mu.Lock()
	defer md.mu.Unlock()

	obj, exists := md.objects.Get(path)
	if !exists {
		return data.ErrNotExist
	}
	if obj.info.IsDir {
		return data.ErrIsDirectory
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	md.put(path, content, false)
	return nil
}

func (md *MemoryDriver) MakeDirectory(ctx context.Context, subPath string) error {
	path := data.NormalizePath(subPath)
	if path == "/" {
		return nil
	}

	md.mu.Lock()
	defer md.mu.Unlock()

	if obj, exists := md.objects.Get(path); exists {
		if obj.info.IsDir {
			return data.ErrExist
		}
		return data.ErrNotDirectory
	}

	md.put(path, nil, true)
	return nil
}

func (md *MemoryDriver) Remove(ctx context.Context, subPath string) error {
	path := data.NormalizePath(subPath)

	md.mu.Lock()
	defer md.mu.Unlock()

	obj, exists := md.objects.Get(path)
	if !exists {
		return data.ErrNotExist
	}

	md.objects.Delete(path)
	if obj.info.IsDir {
		for _, key := range md.subtreeKeys(path) {
			md.objects.Delete(key)
		}
	}

	return nil
}

func (md *MemoryDriver) Rename(ctx context.Context, subPath, newSubPath string) error {
	oldPath := data.NormalizePath(subPath)
	newPath := data.NormalizePath(newSubPath)

	md.mu.Lock()
	defer md.mu.Unlock()

	obj, exists := md.objects.Get(oldPath)
	if !exists {
		return data.ErrNotExist
	}

	move := func(from, to string) {
		moved, _ := md.objects.Get(from)
		md.objects.Delete(from)

		moved.info.Name = nameOf(to)
		md.objects.Set(to, moved)
	}

	move(oldPath, newPath)
	if obj.info.IsDir {
		for _, key := range md.subtreeKeys(oldPath) {
			move(key, newPath+strings.TrimPrefix(key, oldPath))
		}
	}

	return nil
}

func (md *MemoryDriver) ProxyLink(ctx context.Context, subPath string, args data.LinkArgs) (*data.Link, error) {
	md.mu.RLock()
	defer md.mu.RUnlock()

	path := data.NormalizePath(subPath)
	if _, exists := md.objects.Get(path); !exists {
		return nil, data.ErrNotExist
	}

	return &data.Link{
		URL:  md.ProxyBase + "/p" + path,
		Type: data.LinkTypeProxy,
	}, nil
}

func (md *MemoryDriver) InitMultipart(ctx context.Context, args driver.InitMultipartArgs) (*driver.MultipartState, error) {
	md.mu.Lock()
	defer md.mu.Unlock()

	uploadID := uuid.Must(uuid.NewV7()).String()
	md.uploads[uploadID] = &pendingUpload{
		args:      args,
		createdAt: time.Now(),
	}

	return &driver.MultipartState{
		ProviderUploadID: uploadID,
		Strategy:         driver.StrategyServerRecords,
	}, nil
}

func (md *MemoryDriver) SignParts(ctx context.Context, state *driver.MultipartState, subPath string, partNumbers []int) ([]*driver.PartInstruction, error) {
	md.mu.RLock()
	defer md.mu.RUnlock()

	if _, exists := md.uploads[state.ProviderUploadID]; !exists {
		return nil, data.ErrSessionNotFound
	}

	instructions := make([]*driver.PartInstruction, 0, len(partNumbers))
	for _, no := range partNumbers {
		instructions = append(instructions, &driver.PartInstruction{
			PartNo: no,
			Method: "PUT",
			URL:    fmt.Sprintf("memory://%s/%d", state.ProviderUploadID, no),
		})
	}

	return instructions, nil
}

// ListParts is unsupported: the memory driver announces
// server_records, so part enumeration is the ledger's job.
func (md *MemoryDriver) ListParts(ctx context.Context, state *driver.MultipartState, subPath string) ([]*driver.ProviderPart, error) {
	return nil, data.ErrInvalid
}

func (md *MemoryDriver) CompleteMultipart(ctx context.Context, state *driver.MultipartState, subPath string, parts []driver.CompletePart) (*data.ObjectInfo, error) {
	md.mu.Lock()
	defer md.mu.Unlock()

	pending, exists := md.uploads[state.ProviderUploadID]
	if !exists {
		return nil, data.ErrSessionNotFound
	}

	delete(md.uploads, state.ProviderUploadID)

	// Part bytes travel out of band; the assembled object carries the
	// declared file size.
	path := data.NormalizePath(pending.args.SubPath)
	md.put(path, make([]byte, pending.args.FileSize), false)

	obj, _ := md.objects.Get(path)
	return obj.info.Clone(), nil
}

func (md *MemoryDriver) AbortMultipart(ctx context.Context, state *driver.MultipartState, subPath string) error {
	md.mu.Lock()
	defer md.mu.Unlock()

	delete(md.uploads, state.ProviderUploadID)
	return nil
}

// put stores an object and backfills missing parent directories.
func (md *MemoryDriver) put(path string, content []byte, isDir bool) {
	now := time.Now()

	md.objects.Set(path, &object{
		info: data.ObjectInfo{
			Name:       nameOf(path),
			Size:       int64(len(content)),
			IsDir:      isDir,
			ModTime:    now,
			CreateTime: now,
		},
		content: content,
	})

	for _, parent := range data.ParentPaths(data.ParentPath(path)) {
		if parent == "/" {
			break
		}
		if _, exists := md.objects.Get(parent); exists {
			continue
		}

		md.objects.Set(parent, &object{
			info: data.ObjectInfo{
				Name:       nameOf(parent),
				IsDir:      true,
				ModTime:    now,
				CreateTime: now,
			},
		})
	}
}

func (md *MemoryDriver) scanChildren(dir string, fn func(*object)) {
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}

	md.objects.Ascend(prefix, func(key string, obj *object) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}

		// Direct children only
		if !strings.Contains(strings.TrimPrefix(key, prefix), "/") {
			fn(obj)
		}
		return true
	})
}

func (md *MemoryDriver) subtreeKeys(dir string) []string {
	prefix := dir + "/"

	var keys []string
	md.objects.Ascend(prefix, func(key string, _ *object) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}

		keys = append(keys, key)
		return true
	})

	return keys
}

func nameOf(path string) string {
	if path == "/" {
		return "/"
	}

	idx := strings.LastIndex(path, "/")
	return path[idx+1:]
}
