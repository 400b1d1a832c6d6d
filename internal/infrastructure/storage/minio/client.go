package minio

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/ChargeMatch/internal/config"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	Metadata     map[string]string
}

// ObjectAPI is the subset of object storage the snapshot store uses.
// GetObject must report a missing object as an error from the call itself.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket, region string) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string, meta map[string]string) (ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, key string) error
}

// minioAPI adapts *minio.Client to ObjectAPI.
type minioAPI struct {
	c *minio.Client
}

func (a minioAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return a.c.BucketExists(ctx, bucket)
}

func (a minioAPI) MakeBucket(ctx context.Context, bucket, region string) error {
	return a.c.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

func (a minioAPI) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string, meta map[string]string) (ObjectInfo, error) {
	info, err := a.c.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: info.Key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified, Metadata: meta}, nil
}

// GetObject stats the object before returning it; minio.Object otherwise
// defers NoSuchKey to the first Read.
func (a minioAPI) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := a.c.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, ObjectInfo{}, err
	}
	return obj, toObjectInfo(st), nil
}

func (a minioAPI) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range a.c.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true, WithMetadata: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, toObjectInfo(obj))
	}
	return out, nil
}

func (a minioAPI) RemoveObject(ctx context.Context, bucket, key string) error {
	return a.c.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
}

func toObjectInfo(o minio.ObjectInfo) ObjectInfo {
	meta := make(map[string]string, len(o.UserMetadata))
	for k, v := range o.UserMetadata {
		meta[k] = v
	}
	return ObjectInfo{Key: o.Key, Size: o.Size, ETag: o.ETag, LastModified: o.LastModified, Metadata: meta}
}

// isNotFound reports whether err is an S3 missing-object or missing-bucket
// response.
func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return true
	}
	return false
}

const (
	defaultRegion = "us-east-1"
	defaultBucket = "chargematch-snapshots"
	dialTimeout   = 10 * time.Second
)

// NewClient connects to the object store in cfg and makes sure its bucket
// exists.
func NewClient(cfg config.MinIOConfig, log logging.Logger) (ObjectAPI, string, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.Endpoint == "" {
		return nil, "", errors.InvalidParam("minio endpoint required")
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	if cfg.Bucket == "" {
		cfg.Bucket = defaultBucket
	}

	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, "", errors.Wrap(err, errors.CodeStorageError, "failed to create minio client").
			WithDetail("endpoint=" + cfg.Endpoint)
	}
	api := minioAPI{c: c}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := EnsureBucket(ctx, api, cfg.Bucket, cfg.Region, log); err != nil {
		return nil, "", err
	}
	log.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return api, cfg.Bucket, nil
}

// EnsureBucket creates bucket when it does not exist.
func EnsureBucket(ctx context.Context, api ObjectAPI, bucket, region string, log logging.Logger) error {
	exists, err := api.BucketExists(ctx, bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRepositoryUnavailable, "failed to check bucket").
			WithDetail("bucket=" + bucket)
	}
	if exists {
		return nil
	}
	if err := api.MakeBucket(ctx, bucket, region); err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "failed to create bucket").WithDetail("bucket=" + bucket)
	}
	log.Info("Created bucket", logging.String("bucket", bucket))
	return nil
}

//Personal.AI order the ending
