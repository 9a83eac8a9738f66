package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"microgrid/internal/config"
	"microgrid/internal/types"
)

// ObjectClient is the subset of *minio.Client the store uses.
type ObjectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioStore uploads archive batches to an S3-compatible bucket.
type MinioStore struct {
	client ObjectClient
	bucket string
}

// NewMinioClient connects to the archive endpoint with static credentials.
func NewMinioClient(cfg config.ArchiveConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey.Unmask(), cfg.SecretKey.Unmask(), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object storage client: %w", err)
	}
	return client, nil
}

// NewMinioStore creates a store writing to bucket.
func NewMinioStore(client ObjectClient, bucket string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket}
}

// EnsureBucket creates the bucket on first use.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamStorage, "failed to check archive bucket", err)
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamStorage, "failed to create archive bucket", err)
	}
	return nil
}

// Upload writes one compressed batch under key.
func (s *MinioStore) Upload(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: ContentType})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamStorage, fmt.Sprintf("failed to upload %s", key), err)
	}
	return nil
}
