package s3

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mwantia/vgate/data"
)

// presignExpiry bounds how long handed-out URLs stay valid.
const presignExpiry = 4 * time.Hour

// DirectLink returns a pre-signed GET URL for the object.
func (sd *S3Driver) DirectLink(ctx context.Context, subPath string, args data.LinkArgs) (*data.Link, error) {
	params := url.Values{}
	if args.ForceDownload {
		params.Set("response-content-disposition",
			fmt.Sprintf(`attachment; filename="%s"`, lastElement(subPath)))
	}

	signed, err := sd.client.PresignedGetObject(ctx, sd.bucketName, sd.objectKey(subPath), presignExpiry, params)
	if err != nil {
		return nil, err
	}

	return &data.Link{
		URL:       signed.String(),
		Type:      data.LinkTypeSigned,
		ExpiresIn: presignExpiry,
	}, nil
}

// ProxyLink routes the download through the gateway host instead.
func (sd *S3Driver) ProxyLink(ctx context.Context, subPath string, args data.LinkArgs) (*data.Link, error) {
	return &data.Link{
		URL:  sd.ProxyBase + "/p" + data.NormalizePath(subPath),
		Type: data.LinkTypeProxy,
	}, nil
}

func lastElement(subPath string) string {
	normalized := data.NormalizePath(subPath)
	for i := len(normalized) - 1; i >= 0; i-- {
		if normalized[i] == '/' {
			return normalized[i+1:]
		}
	}

	return normalized
}
