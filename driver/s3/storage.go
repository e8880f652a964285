package s3

import (
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/vgate/data"
)

// List returns the direct children of the directory sub-path. Paged
// requests use the bucket's native continuation token as the opaque
// cursor; non-paged requests drain the listing.
func (sd *S3Driver) List(ctx context.Context, subPath string, opts data.ListOptions) (*data.ListResult, error) {
	prefix := sd.dirPrefix(subPath)

	if opts.Paged() {
		return sd.listPage(ctx, prefix, opts)
	}

	result := &data.ListResult{}
	for object := range sd.client.ListObjects(ctx, sd.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if object.Err != nil {
			return nil, object.Err
		}

		if info := sd.entry(prefix, object); info != nil {
			result.Objects = append(result.Objects, info)
		}
	}

	return result, nil
}

func (sd *S3Driver) listPage(ctx context.Context, prefix string, opts data.ListOptions) (*data.ListResult, error) {
	maxKeys := opts.Limit
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	page, err := sd.core.ListObjectsV2(sd.bucketName, prefix, "", opts.Cursor, "/", maxKeys)
	if err != nil {
		return nil, err
	}

	result := &data.ListResult{
		HasMore:    page.IsTruncated,
		NextCursor: page.NextContinuationToken,
	}

	for _, common := range page.CommonPrefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(common.Prefix, prefix), "/")
		if name == "" {
			continue
		}

		result.Objects = append(result.Objects, &data.ObjectInfo{
			Name:  name,
			IsDir: true,
		})
	}

	for _, object := range page.Contents {
		if info := sd.entry(prefix, object); info != nil {
			result.Objects = append(result.Objects, info)
		}
	}

	return result, nil
}

// entry converts one listed object, skipping the directory marker of
// the listed prefix itself.
func (sd *S3Driver) entry(prefix string, object minio.ObjectInfo) *data.ObjectInfo {
	name := strings.TrimPrefix(object.Key, prefix)
	if name == "" {
		return nil
	}

	isDir := strings.HasSuffix(name, "/")
	return &data.ObjectInfo{
		Name:        strings.TrimSuffix(name, "/"),
		Size:        object.Size,
		IsDir:       isDir,
		ModTime:     object.LastModified,
		ETag:        object.ETag,
		ContentType: object.ContentType,
	}
}

func (sd *S3Driver) Stat(ctx context.Context, subPath string) (*data.ObjectInfo, error) {
	key := sd.objectKey(subPath)

	object, err := sd.client.StatObject(ctx, sd.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		if !isNoSuchKey(err) {
			return nil, err
		}

		// Fall back to the directory marker.
		object, err = sd.client.StatObject(ctx, sd.bucketName, key+"/", minio.StatObjectOptions{})
		if err != nil {
			if isNoSuchKey(err) {
				return nil, data.ErrNotExist
			}
			return nil, err
		}
	}

	isDir := strings.HasSuffix(object.Key, "/") || object.ContentType == directoryContentType
	name := strings.TrimSuffix(object.Key, "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}

	return &data.ObjectInfo{
		Name:        name,
		Size:        object.Size,
		IsDir:       isDir,
		ModTime:     object.LastModified,
		ETag:        object.ETag,
		ContentType: object.ContentType,
	}, nil
}

func (sd *S3Driver) OpenRead(ctx context.Context, subPath string) (io.ReadCloser, error) {
	object, err := sd.client.GetObject(ctx, sd.bucketName, sd.objectKey(subPath), minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, data.ErrNotExist
		}
		return nil, err
	}

	return object, nil
}

func (sd *S3Driver) Exists(ctx context.Context, subPath string) (bool, error) {
	_, err := sd.Stat(ctx, subPath)
	if err == data.ErrNotExist {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (sd *S3Driver) Upload(ctx context.Context, subPath string, reader io.Reader, size int64) error {
	_, err := sd.client.PutObject(ctx, sd.bucketName, sd.objectKey(subPath), reader, size, minio.PutObjectOptions{})
	return err
}

func (sd *S3Driver) Update(ctx context.Context, subPath string, reader io.Reader, size int64) error {
	if exists, err := sd.Exists(ctx, subPath); err != nil {
		return err
	} else if !exists {
		return data.ErrNotExist
	}

	return sd.Upload(ctx, subPath, reader, size)
}

func (sd *S3Driver) MakeDirectory(ctx context.Context, subPath string) error {
	_, err := sd.client.PutObject(ctx, sd.bucketName, sd.dirPrefix(subPath),
		strings.NewReader(""), 0, minio.PutObjectOptions{
			ContentType: directoryContentType,
		})

	return err
}

func (sd *S3Driver) Remove(ctx context.Context, subPath string) error {
	key := sd.objectKey(subPath)

	// Remove the subtree first; a plain file matches no children and
	// the loop is a no-op.
	for object := range sd.client.ListObjects(ctx, sd.bucketName, minio.ListObjectsOptions{
		Prefix:    key + "/",
		Recursive: true,
	}) {
		if object.Err != nil {
			return object.Err
		}

		if err := sd.client.RemoveObject(ctx, sd.bucketName, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}

	if err := sd.client.RemoveObject(ctx, sd.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return err
	}

	return sd.client.RemoveObject(ctx, sd.bucketName, key+"/", minio.RemoveObjectOptions{})
}

func (sd *S3Driver) Rename(ctx context.Context, subPath, newSubPath string) error {
	oldKey := sd.objectKey(subPath)
	newKey := sd.objectKey(newSubPath)

	copyOne := func(from, to string) error {
		_, err := sd.client.CopyObject(ctx,
			minio.CopyDestOptions{Bucket: sd.bucketName, Object: to},
			minio.CopySrcOptions{Bucket: sd.bucketName, Object: from})
		return err
	}

	// Directory subtrees are moved entry by entry; S3 has no native
	// rename.
	moved := false
	for object := range sd.client.ListObjects(ctx, sd.bucketName, minio.ListObjectsOptions{
		Prefix:    oldKey + "/",
		Recursive: true,
	}) {
		if object.Err != nil {
			return object.Err
		}

		target := newKey + strings.TrimPrefix(object.Key, oldKey)
		if err := copyOne(object.Key, target); err != nil {
			return err
		}
		if err := sd.client.RemoveObject(ctx, sd.bucketName, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
		moved = true
	}

	if err := copyOne(oldKey, newKey); err != nil {
		if !moved || !isNoSuchKey(err) {
			return err
		}
		return nil
	}

	return sd.client.RemoveObject(ctx, sd.bucketName, oldKey, minio.RemoveObjectOptions{})
}
