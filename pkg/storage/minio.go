package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/lodeflow/sentinel/pkg/events"
)

// Config holds the connection settings for one object storage endpoint.
type Config struct {
	Endpoint        string `validate:"required"`
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// MinioStore implements ObjectStore over a MinIO / S3-compatible endpoint.
type MinioStore struct {
	client *minio.Client
}

func NewMinioStore(cfg Config) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("empty object storage endpoint")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	return &MinioStore{client: client}, nil
}

func (s *MinioStore) Head(ctx context.Context, bucket, key string) (events.ObjectMeta, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return events.ObjectMeta{}, ErrNotFound
		}

		return events.ObjectMeta{}, fmt.Errorf("stat object %s/%s: %w", bucket, key, err)
	}

	return objectMeta(info), nil
}

func (s *MinioStore) List(ctx context.Context, bucket, prefix string) ([]events.ObjectMeta, error) {
	var listing []events.ObjectMeta

	for info := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, info.Err)
		}

		listing = append(listing, objectMeta(info))
	}

	return listing, nil
}

func objectMeta(info minio.ObjectInfo) events.ObjectMeta {
	return events.ObjectMeta{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}
}
