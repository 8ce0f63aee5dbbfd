package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/reelkeep/apiserver/config"
)

// ObjectStorage defines common object operations across backends. Get
// returns the content type recorded at Put time alongside the reader.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// PosterStore keeps movie poster images in object storage under random keys,
// so the database only carries the key reference.
type PosterStore struct {
	backend ObjectStorage
}

// New selects and constructs the configured backend.
func New(ctx context.Context, cfg config.Config) (*PosterStore, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendMinio:
		backend, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return NewPosterStore(backend), nil
	case config.StorageBackendGCS:
		backend, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return NewPosterStore(backend), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// NewPosterStore wraps the provided backend.
func NewPosterStore(backend ObjectStorage) *PosterStore {
	return &PosterStore{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (s *PosterStore) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Upload stores poster bytes under a fresh random key and returns the key.
func (s *PosterStore) Upload(ctx context.Context, r io.Reader, size int64, contentType string) (string, error) {
	key := "posters/" + uuid.NewString()
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Open returns a reader for the poster stored under key, plus the content
// type it was uploaded with.
func (s *PosterStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if key == "" {
		return nil, "", errors.New("empty poster key")
	}
	return s.backend.Get(ctx, key)
}

// Delete removes the poster stored under key. An empty key is a no-op so
// callers can pass a previous key unconditionally.
func (s *PosterStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *PosterStore) Bucket() string {
	return s.backend.Bucket()
}
