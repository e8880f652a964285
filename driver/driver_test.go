package driver_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/data/errors"
	"github.com/mwantia/vgate/driver"
	"github.com/mwantia/vgate/driver/local"
	"github.com/mwantia/vgate/driver/memory"
)

type TestDriverFactory func(tst *testing.T) (driver.Driver, error)

func GetTestDriverFactories() map[string]TestDriverFactory {
	return map[string]TestDriverFactory{
		"memory": func(tst *testing.T) (driver.Driver, error) {
			return memory.New(), nil
		},
		"local": func(tst *testing.T) (driver.Driver, error) {
			return local.New(tst.TempDir())
		},
	}
}

// TestAllDrivers_ObjectOperations verifies upload, stat, read, rename
// and remove across all read/write driver implementations.
func TestAllDrivers_ObjectOperations(t *testing.T) {
	factories := GetTestDriverFactories()

	for name, factory := range factories {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			drv, err := factory(tst)
			if err != nil {
				tst.Fatalf("Failed to create driver: %v", err)
			}

			if err := drv.Open(ctx); err != nil {
				tst.Fatalf("Failed to open driver: %v", err)
			}
			defer drv.Close(ctx)

			if !driver.Has(drv, driver.CapReader) || !driver.Has(drv, driver.CapWriter) {
				tst.Fatalf("Expected reader and writer capabilities")
			}

			reader := drv.(driver.Reader)
			writer := drv.(driver.Writer)

			content := []byte("hello world")
			if err := writer.Upload(ctx, "test.txt", bytes.NewReader(content), int64(len(content))); err != nil {
				tst.Fatalf("Upload failed: %v", err)
			}

			info, err := reader.Stat(ctx, "test.txt")
			if err != nil {
				tst.Fatalf("Stat failed: %v", err)
			}
			if info.IsDir || info.Size != int64(len(content)) {
				tst.Errorf("Expected a %d byte file, got %+v", len(content), info)
			}

			stream, err := reader.OpenRead(ctx, "test.txt")
			if err != nil {
				tst.Fatalf("OpenRead failed: %v", err)
			}
			got, err := io.ReadAll(stream)
			stream.Close()
			if err != nil {
				tst.Fatalf("ReadAll failed: %v", err)
			}
			if !bytes.Equal(got, content) {
				tst.Errorf("Expected %q, got %q", content, got)
			}

			if err := writer.Rename(ctx, "test.txt", "renamed.txt"); err != nil {
				tst.Fatalf("Rename failed: %v", err)
			}
			if exists, _ := reader.Exists(ctx, "test.txt"); exists {
				tst.Errorf("Expected the old name to be gone")
			}
			if exists, _ := reader.Exists(ctx, "renamed.txt"); !exists {
				tst.Errorf("Expected the new name to exist")
			}

			if err := writer.Remove(ctx, "renamed.txt"); err != nil {
				tst.Fatalf("Remove failed: %v", err)
			}
			if _, err := reader.Stat(ctx, "renamed.txt"); !errors.Is(err, data.ErrNotExist) {
				tst.Errorf("Expected ErrNotExist, got %v", err)
			}

			if err := writer.Update(ctx, "missing.txt", bytes.NewReader(content), int64(len(content))); !errors.Is(err, data.ErrNotExist) {
				tst.Errorf("Expected Update on a missing object to fail, got %v", err)
			}
		})
	}
}

// TestAllDrivers_DirectoryOperations verifies directory creation,
// listing and recursive removal.
func TestAllDrivers_DirectoryOperations(t *testing.T) {
	factories := GetTestDriverFactories()

	for name, factory := range factories {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			drv, err := factory(tst)
			if err != nil {
				tst.Fatalf("Failed to create driver: %v", err)
			}

			if err := drv.Open(ctx); err != nil {
				tst.Fatalf("Failed to open driver: %v", err)
			}
			defer drv.Close(ctx)

			reader := drv.(driver.Reader)
			writer := drv.(driver.Writer)

			if err := writer.MakeDirectory(ctx, "docs"); err != nil {
				tst.Fatalf("MakeDirectory failed: %v", err)
			}

			for _, name := range []string{"docs/a.txt", "docs/b.txt"} {
				if err := writer.Upload(ctx, name, bytes.NewReader([]byte("x")), 1); err != nil {
					tst.Fatalf("Upload %s failed: %v", name, err)
				}
			}

			result, err := reader.List(ctx, "docs", data.ListOptions{})
			if err != nil {
				tst.Fatalf("List failed: %v", err)
			}
			if len(result.Objects) != 2 {
				tst.Errorf("Expected 2 entries, got %d", len(result.Objects))
			}

			root, err := reader.List(ctx, "", data.ListOptions{})
			if err != nil {
				tst.Fatalf("Root list failed: %v", err)
			}
			found := false
			for _, obj := range root.Objects {
				if obj.Name == "docs" && obj.IsDir {
					found = true
				}
			}
			if !found {
				tst.Errorf("Expected the directory in the root listing, got %+v", root.Objects)
			}

			if err := writer.Remove(ctx, "docs"); err != nil {
				tst.Fatalf("Recursive remove failed: %v", err)
			}
			if exists, _ := reader.Exists(ctx, "docs/a.txt"); exists {
				tst.Errorf("Expected children to be removed with the directory")
			}
		})
	}
}

// TestCapabilityGate verifies Has demands both the declaration and the
// interface.
func TestCapabilityGate(t *testing.T) {
	drv := memory.New()

	if driver.Has(drv, driver.CapDirectLink) {
		t.Errorf("Expected the memory driver to lack DIRECT_LINK")
	}
	if driver.Has(drv, driver.CapPagedList) {
		t.Errorf("Expected the memory driver to lack PAGED_LIST")
	}
	if !driver.Has(drv, driver.CapMultipart) {
		t.Errorf("Expected the memory driver to support MULTIPART")
	}
	if !driver.Has(drv, driver.CapProxy) {
		t.Errorf("Expected the memory driver to support PROXY")
	}
}
