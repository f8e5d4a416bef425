package asset

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/nebari-dev/tenancy/internal/models"
)

// S3Config configures an S3-compatible object store.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Store keeps asset bytes in an S3-compatible bucket under assets/<id>.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store connects to the object store and creates the bucket if needed.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func objectKey(a *models.Asset) string {
	return "assets/" + a.ID.String()
}

func (s *S3Store) Put(ctx context.Context, a *models.Asset, data []byte) error {
	key := objectKey(a)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: a.ContentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	a.StorageKey = key
	return nil
}

func (s *S3Store) Get(ctx context.Context, a *models.Asset) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, a.StorageKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", a.StorageKey, err)
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (s *S3Store) Delete(ctx context.Context, a *models.Asset) error {
	if a.StorageKey == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, a.StorageKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", a.StorageKey, err)
	}
	return nil
}
