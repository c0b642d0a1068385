package objecturl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/princekumarofficial/plate-console/internal/config"
)

const minioPrefix = "results/"

// MinIOStore keeps blobs as objects in a MinIO (or any S3-compatible) bucket.
type MinIOStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOStore creates the client and makes sure the bucket exists
func NewMinIOStore(ctx context.Context, cfg *config.MinIO) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	store := &MinIOStore{
		client:     client,
		bucketName: cfg.BucketName,
	}

	if err := store.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return store, nil
}

func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

func (s *MinIOStore) Put(ctx context.Context, id string, blob *Blob) error {
	_, err := s.client.PutObject(ctx, s.bucketName, minioPrefix+id,
		bytes.NewReader(blob.Body), int64(len(blob.Body)),
		minio.PutObjectOptions{ContentType: blob.ContentType},
	)
	if err != nil {
		return fmt.Errorf("put object %q: %w", id, err)
	}
	return nil
}

func (s *MinIOStore) Get(ctx context.Context, id string) (*Blob, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, minioPrefix+id, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translate(err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, s.translate(err)
	}

	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", id, err)
	}

	return &Blob{
		ContentType: info.ContentType,
		Body:        body,
		CreatedAt:   info.LastModified,
	}, nil
}

func (s *MinIOStore) Delete(ctx context.Context, id string) error {
	return s.client.RemoveObject(ctx, s.bucketName, minioPrefix+id, minio.RemoveObjectOptions{})
}

func (s *MinIOStore) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	objectsCh := s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    minioPrefix,
		Recursive: true,
	})

	removed := 0
	for object := range objectsCh {
		if object.Err != nil {
			return removed, object.Err
		}
		if object.LastModified.After(cutoff) {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucketName, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("remove object %q: %w", object.Key, err)
		}
		removed++
	}

	return removed, nil
}

func (s *MinIOStore) translate(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}
