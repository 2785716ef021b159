package adapter

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/liveclip/live-stream-clipper/internal/service/utils"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	maxUploadAttempts = 5
	initialBackoff    = 1 * time.Millisecond
)

// S3ClientImpl is the durable store client. Uploads overwrite and Remove is
// idempotent: removing a key that does not exist is not an error.
type S3ClientImpl struct {
	s3Client *minio.Client
}

func NewMinioClient() *S3ClientImpl {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	useSSL := false
	if strings.ToLower(os.Getenv("MINIO_USE_SSL")) == "true" {
		useSSL = true
	}
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	if accessKey == "" {
		slog.Error("MINIO_ACCESS_KEY is not set")
		os.Exit(1)
	}
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if secretKey == "" {
		slog.Error("MINIO_SECRET_KEY is not set")
		os.Exit(1)
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		slog.Error("Failed to create MinIO client", "err", err)
		return nil
	}
	return &S3ClientImpl{
		s3Client: client,
	}
}

func (s *S3ClientImpl) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return s.s3Client.BucketExists(ctx, bucketName)
}

func (s *S3ClientImpl) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return s.s3Client.MakeBucket(ctx, bucketName, opts)
}

// LiveBucket binds an S3ClientImpl to a single bucket, giving the synchronizer
// the upload/remove capability it needs and nothing else.
type LiveBucket struct {
	client *S3ClientImpl
	bucket string
}

func NewLiveBucket(client *S3ClientImpl, bucket string) *LiveBucket {
	return &LiveBucket{client: client, bucket: bucket}
}

// Upload writes data under key with the given content type, retrying transient
// failures with backoff.
func (b *LiveBucket) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := utils.Retry(maxUploadAttempts, initialBackoff, func() (minio.UploadInfo, error) {
		return b.client.s3Client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: contentType,
		})
	})
	return err
}

// Remove deletes the given keys. Missing keys are not an error.
func (b *LiveBucket) Remove(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := b.client.s3Client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}
