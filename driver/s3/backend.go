// Package s3 provides an S3-compatible driver built on minio-go.
// It carries the full capability surface: listing (paged), reads,
// writes, pre-signed direct links, proxy links and native multipart
// uploads with the server_can_list strategy.
package s3

import (
	"context"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/data/errors"
	"github.com/mwantia/vgate/driver"
)

const DriverType = "s3"

// directoryContentType marks zero-byte placeholder objects standing in
// for directories.
const directoryContentType = "application/x-directory"

type S3Driver struct {
	core   *minio.Core
	client *minio.Client

	bucketName string
	keyPrefix  string

	// ProxyBase prefixes generated proxy URLs.
	ProxyBase string
}

// S3Config carries the connection settings for one bucket.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool

	// KeyPrefix roots the mount at a sub-tree of the bucket.
	KeyPrefix string
}

func New(config S3Config) (*S3Driver, error) {
	core, err := minio.NewCore(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, err
	}

	return &S3Driver{
		core:       core,
		client:     core.Client,
		bucketName: config.Bucket,
		keyPrefix:  strings.Trim(config.KeyPrefix, "/"),
	}, nil
}

// Factory adapts New to the driver registry.
func Factory(ctx context.Context, mount *data.Mount) (driver.Driver, error) {
	cfg := mount.Config

	drv, err := New(S3Config{
		Endpoint:  cfg["endpoint"],
		AccessKey: cfg["access_key"],
		SecretKey: cfg["secret_key"],
		Bucket:    cfg["bucket"],
		Region:    cfg["region"],
		UseSSL:    cfg["use_ssl"] == "true",
		KeyPrefix: cfg["key_prefix"],
	})
	if err != nil {
		return nil, err
	}

	drv.ProxyBase = cfg["proxy_base"]
	return drv, nil
}

func (*S3Driver) Type() string {
	return DriverType
}

func (sd *S3Driver) Open(ctx context.Context) error {
	exists, err := sd.client.BucketExists(ctx, sd.bucketName)
	if err != nil {
		return errors.Driver(err, DriverType, "failed to reach bucket '%s'", sd.bucketName)
	}

	if !exists {
		return errors.Driver(nil, DriverType, "bucket '%s' does not exist", sd.bucketName)
	}

	return nil
}

func (sd *S3Driver) Close(ctx context.Context) error {
	return nil
}

func (sd *S3Driver) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		Capabilities: []driver.Capability{
			driver.CapReader,
			driver.CapWriter,
			driver.CapMultipart,
			driver.CapPagedList,
			driver.CapDirectLink,
			driver.CapProxy,
		},
	}
}

// SupportsPagination is the PAGED_LIST self-test; continuation tokens
// work against every S3-compatible endpoint minio-go speaks to.
func (sd *S3Driver) SupportsPagination() bool {
	return true
}

// objectKey maps a sub-path onto the bucket key space.
func (sd *S3Driver) objectKey(subPath string) string {
	key := strings.TrimPrefix(data.NormalizePath(subPath), "/")
	if sd.keyPrefix == "" {
		return key
	}
	if key == "" {
		return sd.keyPrefix
	}

	return sd.keyPrefix + "/" + key
}

// dirPrefix is the listing prefix for a directory sub-path.
func (sd *S3Driver) dirPrefix(subPath string) string {
	key := sd.objectKey(subPath)
	if key == "" {
		return ""
	}

	return key + "/"
}

func isNoSuchKey(err error) bool {
	response := minio.ToErrorResponse(err)
	return response.Code == "NoSuchKey" || response.Code == "NoSuchUpload"
}
