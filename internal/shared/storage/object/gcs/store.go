package gcs

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"aicv-backend/internal/shared/storage/object"
)

const publicBase = "https://storage.googleapis.com"

// Store implements ObjectStore on Google Cloud Storage with publicRead objects.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS client using application default credentials.
func New(ctx context.Context, bucket, prefix string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &Store{client: client, bucket: bucket, prefix: object.NormalizePrefix(prefix)}, nil
}

// Put streams data into the bucket under key.
func (s *Store) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (object.Object, error) {
	objectKey := object.ApplyPrefix(s.prefix, key)

	w := s.client.Bucket(s.bucket).Object(objectKey).NewWriter(ctx)
	w.ContentType = contentType
	w.PredefinedACL = "publicRead"

	written, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return object.Object{}, fmt.Errorf("gcs write %s: %w", objectKey, err)
	}
	if err := w.Close(); err != nil {
		return object.Object{}, fmt.Errorf("gcs close %s: %w", objectKey, err)
	}
	return object.Object{
		Key:         objectKey,
		URL:         PublicURL(s.bucket, objectKey),
		ContentType: contentType,
		Size:        written,
	}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// PublicURL is the anonymous read URL of an object.
func PublicURL(bucket, key string) string {
	return object.JoinURL(publicBase+"/"+bucket, key)
}

var _ object.ObjectStore = (*Store)(nil)
