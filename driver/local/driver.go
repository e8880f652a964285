// Package local provides a disk-backed driver rooted at a directory.
package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/driver"
)

const DriverType = "local"

// LocalDriver serves a subtree of the local filesystem. It supports
// reading, writing and proxy links; direct links make no sense for a
// disk only the gateway host can reach.
type LocalDriver struct {
	root string

	// ProxyBase prefixes generated proxy URLs.
	ProxyBase string
}

func New(root string) (*LocalDriver, error) {
	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	return &LocalDriver{root: absolute}, nil
}

// Factory adapts New to the driver registry. Reads "root" and
// "proxy_base" from the mount configuration.
func Factory(ctx context.Context, mount *data.Mount) (driver.Driver, error) {
	drv, err := New(mount.Config["root"])
	if err != nil {
		return nil, err
	}

	drv.ProxyBase = mount.Config["proxy_base"]
	return drv, nil
}

func (*LocalDriver) Type() string {
	return DriverType
}

func (ld *LocalDriver) Open(ctx context.Context) error {
	info, err := os.Stat(ld.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return data.ErrNotDirectory
	}

	return nil
}

func (ld *LocalDriver) Close(ctx context.Context) error {
	return nil
}

func (ld *LocalDriver) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		Capabilities: []driver.Capability{
			driver.CapReader,
			driver.CapWriter,
			driver.CapProxy,
		},
	}
}

// resolve maps a sub-path below the configured root, rejecting
// traversal outside of it.
func (ld *LocalDriver) resolve(subPath string) (string, error) {
	full := filepath.Join(ld.root, filepath.FromSlash(data.NormalizePath(subPath)))
	if full != ld.root && !strings.HasPrefix(full, ld.root+string(filepath.Separator)) {
		return "", data.ErrInvalid
	}

	return full, nil
}

func (ld *LocalDriver) List(ctx context.Context, subPath string, opts data.ListOptions) (*data.ListResult, error) {
	full, err := ld.resolve(subPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, translate(err)
	}

	result := &data.ListResult{}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		result.Objects = append(result.Objects, &data.ObjectInfo{
			Name:    entry.Name(),
			Size:    info.Size(),
			IsDir:   entry.IsDir(),
			ModTime: info.ModTime(),
		})
	}

	return result, nil
}

func (ld *LocalDriver) Stat(ctx context.Context, subPath string) (*data.ObjectInfo, error) {
	full, err := ld.resolve(subPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, translate(err)
	}

	return &data.ObjectInfo{
		Name:    info.Name(),
		Size:    info.Size(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
	}, nil
}

func (ld *LocalDriver) OpenRead(ctx context.Context, subPath string) (io.ReadCloser, error) {
	full, err := ld.resolve(subPath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(full)
	if err != nil {
		return nil, translate(err)
	}

	return file, nil
}

func (ld *LocalDriver) Exists(ctx context.Context, subPath string) (bool, error) {
	full, err := ld.resolve(subPath)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (ld *LocalDriver) Upload(ctx context.Context, subPath string, reader io.Reader, size int64) error {
	full, err := ld.resolve(subPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}

	file, err := os.Create(full)
	if err != nil {
		return translate(err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

func (ld *LocalDriver) Update(ctx context.Context, subPath string, reader io.Reader, size int64) error {
	full, err := ld.resolve(subPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(full); err != nil {
		return translate(err)
	}

	return ld.Upload(ctx, subPath, reader, size)
}

func (ld *LocalDriver) MakeDirectory(ctx context.Context, subPath string) error {
	full, err := ld.resolve(subPath)
	if err != nil {
		return err
	}

	return translate(os.Mkdir(full, 0755))
}

func (ld *LocalDriver) Remove(ctx context.Context, subPath string) error {
	full, err := ld.resolve(subPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(full); err != nil {
		return translate(err)
	}

	return os.RemoveAll(full)
}

func (ld *LocalDriver) Rename(ctx context.Context, subPath, newSubPath string) error {
	from, err := ld.resolve(subPath)
	if err != nil {
		return err
	}

	to, err := ld.resolve(newSubPath)
	if err != nil {
		return err
	}

	return translate(os.Rename(from, to))
}

func (ld *LocalDriver) ProxyLink(ctx context.Context, subPath string, args data.LinkArgs) (*data.Link, error) {
	if exists, err := ld.Exists(ctx, subPath); err != nil {
		return nil, err
	} else if !exists {
		return nil, data.ErrNotExist
	}

	return &data.Link{
		URL:  ld.ProxyBase + "/p" + data.NormalizePath(subPath),
		Type: data.LinkTypeProxy,
	}, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return data.ErrNotExist
	case errors.Is(err, fs.ErrExist):
		return data.ErrExist
	default:
		return err
	}
}
