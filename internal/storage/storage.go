// Package storage keeps the original uploaded lesson files in an object store
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/esllessons/backend/internal/config"
)

// ErrObjectNotFound is returned when no object exists under the requested key
var ErrObjectNotFound = errors.New("object not found")

// Store is an object store addressed by slash-separated keys
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object; a missing object is not an error
	Delete(ctx context.Context, key string) error
	Name() string
}

// New creates the object store selected by the configured driver
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.StorageDriverLocal:
		return NewLocalStorage(cfg.BasePath), nil
	case config.StorageDriverS3:
		return NewS3Storage(ctx, cfg.S3)
	case config.StorageDriverGCS:
		return NewGCSStorage(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// localStorage implements Store using local filesystem
type localStorage struct {
	basePath string
}

// NewLocalStorage creates a new localStorage instance
func NewLocalStorage(basePath string) *localStorage {
	return &localStorage{
		basePath: basePath,
	}
}

func (s *localStorage) Name() string {
	return config.StorageDriverLocal
}

// generatePath converts the key to a path below the base directory
func (s *localStorage) generatePath(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

// Put writes the body to the file addressed by key, creating directories as needed
func (s *localStorage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.generatePath(key)
	if err != nil {
		return err
	}

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close file: %w", err)
	}

	return nil
}

// Open opens a file for reading and returns a ReadCloser
func (s *localStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.generatePath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes the file addressed by key
func (s *localStorage) Delete(ctx context.Context, key string) error {
	path, err := s.generatePath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// validateKey rejects keys that are empty, absolute or escape the store root
func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("invalid object key: empty")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid object key: %s", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return fmt.Errorf("invalid object key: %s", key)
		}
	}
	return nil
}
