// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Objects are immutable once written, so clients may cache aggressively.
const cacheControl = "public, max-age=31536000, immutable"

// Config captures the parameters required to use a GCS bucket.
type Config struct {
	Bucket string
	// PublicBaseURL, when set, is joined with the object key to form a
	// stable public URL. When empty, Put returns a presigned URL instead.
	PublicBaseURL string
	// SignedURLTTL is the presigned URL validity window.
	SignedURLTTL time.Duration
}

// Store writes captured images to a configured GCS bucket.
type Store struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
	signedURLTTL  time.Duration
}

// New creates a GCS-backed store and verifies the bucket is reachable.
// Authentication is handled via Application Default Credentials. The probe
// makes misconfiguration a startup failure rather than a per-request one.
func New(ctx context.Context, client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = 7 * 24 * time.Hour
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		return nil, fmt.Errorf("probe gcs bucket %q: %w", cfg.Bucket, err)
	}
	return &Store{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		signedURLTTL:  cfg.SignedURLTTL,
	}, nil
}

// Put uploads data under key and returns either a public or a presigned URL.
func (s *Store) Put(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = cacheControl
	if _, err := w.Write(data); err != nil {
		closeErr := w.Close()
		if closeErr != nil {
			return "", fmt.Errorf("write object %s: %w (close writer: %v)", key, err, closeErr)
		}
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer for %s: %w", key, err)
	}

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key, nil
	}
	url, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(s.signedURLTTL),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("sign url for %s: %w", key, err)
	}
	return url, nil
}

// Delete removes the object at key. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("delete object %s: %w", key, err)
	}
	return true, nil
}
