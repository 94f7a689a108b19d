// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"maps"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string

	// Endpoint overrides the API endpoint, e.g. for an emulator.
	Endpoint string

	// CredentialsFile points at a service account key; empty uses ADC.
	CredentialsFile string
}

// ClientOptions converts the config into client options.
func (c Config) ClientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint), option.WithoutAuthentication())
	}
	if c.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	return opts
}

// BlobStore writes artifacts to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// Dial creates a storage client from cfg and wraps it in a BlobStore.
func Dial(ctx context.Context, cfg Config) (*BlobStore, error) {
	client, err := storage.NewClient(ctx, cfg.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	store, err := New(client, cfg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// PutObject uploads r to the configured bucket and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path, contentType string, metadata map[string]string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if len(metadata) > 0 {
		writer.Metadata = maps.Clone(metadata)
	}
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}

// Close releases the underlying client.
func (s *BlobStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close storage client: %w", err)
	}
	return nil
}
