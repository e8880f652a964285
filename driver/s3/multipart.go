package s3

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/driver"
)

// InitMultipart opens a native S3 multipart upload. S3 can enumerate
// its own in-flight parts, so sessions run with server_can_list.
func (sd *S3Driver) InitMultipart(ctx context.Context, args driver.InitMultipartArgs) (*driver.MultipartState, error) {
	opts := minio.PutObjectOptions{}
	if contentType := args.Options["content_type"]; contentType != "" {
		opts.ContentType = contentType
	}

	uploadID, err := sd.core.NewMultipartUpload(ctx, sd.bucketName, sd.objectKey(args.SubPath), opts)
	if err != nil {
		return nil, err
	}

	return &driver.MultipartState{
		ProviderUploadID: uploadID,
		Strategy:         driver.StrategyServerCanList,
	}, nil
}

// SignParts pre-signs one PUT URL per requested part number.
// Re-signing an already signed or expired part issues a fresh URL.
func (sd *S3Driver) SignParts(ctx context.Context, state *driver.MultipartState, subPath string, partNumbers []int) ([]*driver.PartInstruction, error) {
	key := sd.objectKey(subPath)

	instructions := make([]*driver.PartInstruction, 0, len(partNumbers))
	for _, no := range partNumbers {
		params := url.Values{}
		params.Set("partNumber", fmt.Sprintf("%d", no))
		params.Set("uploadId", state.ProviderUploadID)

		signed, err := sd.client.Presign(ctx, "PUT", sd.bucketName, key, presignExpiry, params)
		if err != nil {
			return nil, err
		}

		instructions = append(instructions, &driver.PartInstruction{
			PartNo:    no,
			URL:       signed.String(),
			Method:    "PUT",
			ExpiresIn: presignExpiry,
		})
	}

	return instructions, nil
}

func (sd *S3Driver) ListParts(ctx context.Context, state *driver.MultipartState, subPath string) ([]*driver.ProviderPart, error) {
	key := sd.objectKey(subPath)

	var parts []*driver.ProviderPart
	marker := 0
	for {
		page, err := sd.core.ListObjectParts(ctx, sd.bucketName, key, state.ProviderUploadID, marker, 1000)
		if err != nil {
			if isNoSuchKey(err) {
				return nil, data.ErrSessionNotFound
			}
			return nil, err
		}

		for _, part := range page.ObjectParts {
			parts = append(parts, &driver.ProviderPart{
				PartNo:         part.PartNumber,
				Size:           part.Size,
				ProviderPartID: part.ETag,
				ModTime:        part.LastModified,
			})
		}

		if !page.IsTruncated {
			return parts, nil
		}

		marker = page.NextPartNumberMarker
	}
}

func (sd *S3Driver) CompleteMultipart(ctx context.Context, state *driver.MultipartState, subPath string, parts []driver.CompletePart) (*data.ObjectInfo, error) {
	complete := make([]minio.CompletePart, 0, len(parts))
	for _, part := range parts {
		complete = append(complete, minio.CompletePart{
			PartNumber: part.PartNo,
			ETag:       part.ProviderPartID,
		})
	}

	info, err := sd.core.CompleteMultipartUpload(ctx, sd.bucketName, sd.objectKey(subPath), state.ProviderUploadID, complete, minio.PutObjectOptions{})
	if err != nil {
		return nil, err
	}

	return &data.ObjectInfo{
		Name:    lastElement(subPath),
		Size:    info.Size,
		ModTime: time.Now(),
		ETag:    info.ETag,
	}, nil
}

func (sd *S3Driver) AbortMultipart(ctx context.Context, state *driver.MultipartState, subPath string) error {
	err := sd.core.AbortMultipartUpload(ctx, sd.bucketName, sd.objectKey(subPath), state.ProviderUploadID)
	if err != nil && isNoSuchKey(err) {
		// Already gone; aborting twice is fine.
		return nil
	}

	return err
}
