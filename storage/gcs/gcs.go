// Package gcs implements storage.Storage on Google Cloud Storage.
package gcs

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	apperrors "github.com/kbukum/etlflow/errors"
	"github.com/kbukum/etlflow/logger"
	"github.com/kbukum/etlflow/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderGCS, func(cfg storage.Config, providerCfg any, log *logger.Logger) (storage.Storage, error) {
		c := FromCore(cfg)
		if providerCfg != nil {
			pc, ok := providerCfg.(*Config)
			if !ok {
				return nil, fmt.Errorf("gcs: expected *gcs.Config, got %T", providerCfg)
			}
			c = pc
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return NewStorage(context.Background(), c)
	})
}

// Storage implements storage.Storage on a single GCS bucket.
type Storage struct {
	client *gcstorage.Client
	bucket *gcstorage.BucketHandle
	name   string
}

// ClientOptions returns the client options implied by cfg.
func ClientOptions(cfg *Config) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return opts
}

// NewStorage creates a GCS client for cfg.Bucket.
func NewStorage(ctx context.Context, cfg *Config) (*Storage, error) {
	client, err := gcstorage.NewClient(ctx, ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("storage: gcs client: %w", err)
	}
	return NewStorageWithClient(client, cfg.Bucket), nil
}

// NewStorageWithClient wraps an existing client.
func NewStorageWithClient(client *gcstorage.Client, bucket string) *Storage {
	return &Storage{client: client, bucket: client.Bucket(bucket), name: bucket}
}

// Upload streams reader into the object, replacing any previous generation.
// A failed upload leaves the previous generation in place.
func (s *Storage) Upload(ctx context.Context, path string, reader io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.bucket.Object(path).NewWriter(ctx)
	if _, err := io.Copy(w, reader); err != nil {
		// Close would finalize the partial object; cancelling aborts it.
		cancel()
		return fmt.Errorf("storage: gcs upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: gcs upload: %w", err)
	}
	return nil
}

// Download returns a reader for the object at path.
func (s *Storage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(path).NewReader(ctx)
	if err != nil {
		if stderrors.Is(err, gcstorage.ErrObjectNotExist) {
			return nil, apperrors.NotFound("object", path).WithCause(err)
		}
		return nil, fmt.Errorf("storage: gcs download: %w", err)
	}
	return r, nil
}

// Delete removes the object. Missing objects are not an error.
func (s *Storage) Delete(ctx context.Context, path string) error {
	err := s.bucket.Object(path).Delete(ctx)
	if err != nil && !stderrors.Is(err, gcstorage.ErrObjectNotExist) {
		return fmt.Errorf("storage: gcs delete: %w", err)
	}
	return nil
}

// Exists reports whether the object exists.
func (s *Storage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.bucket.Object(path).Attrs(ctx)
	if err != nil {
		if stderrors.Is(err, gcstorage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("storage: gcs attrs: %w", err)
	}
	return true, nil
}

// URL returns the public HTTPS URL of the object.
func (s *Storage) URL(_ context.Context, path string) (string, error) {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.name, path), nil
}

// List returns metadata for all objects whose name starts with prefix.
func (s *Storage) List(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	it := s.bucket.Objects(ctx, &gcstorage.Query{Prefix: prefix})

	files := []storage.FileInfo{}
	for {
		attrs, err := it.Next()
		if stderrors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: gcs list: %w", err)
		}
		files = append(files, storage.FileInfo{
			Path:         attrs.Name,
			Size:         attrs.Size,
			LastModified: attrs.Updated,
			ContentType:  attrs.ContentType,
		})
	}
	return files, nil
}

// Close releases the client.
func (s *Storage) Close() error {
	return s.client.Close()
}

// compile-time check
var _ storage.Storage = (*Storage)(nil)
