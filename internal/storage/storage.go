// Package storage provides the photo blob stores: local disk and S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/checkmate"
	"github.com/google/uuid"
)

// Compile-time interface checks
var (
	_ checkmate.BlobStore = (*LocalStorage)(nil)
	_ checkmate.BlobStore = (*S3Storage)(nil)
)

var extensionsByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// NewBlobStore creates a blob store based on the provider configuration.
func NewBlobStore(ctx context.Context, logger *slog.Logger, cfg checkmate.StorageConfig) (checkmate.BlobStore, error) {
	switch cfg.Provider {
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 storage requires a bucket")
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		logger.Info("initialized S3 storage",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("prefix", cfg.S3Prefix),
		)
		return NewS3Storage(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix), nil

	case "local", "":
		storage, err := NewLocalStorage(cfg.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}

		logger.Info("initialized local storage", slog.String("path", cfg.LocalPath))
		return storage, nil

	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// newRef builds a unique, date-partitioned reference for new content.
func newRef(now time.Time, contentType string) string {
	return fmt.Sprintf("%s/%s%s", now.UTC().Format("2006/01"), uuid.New().String(), extensionsByType[contentType])
}

// LocalStorage stores blobs on local disk under basePath.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage instance.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("local storage path is required")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// path resolves a reference inside basePath, rejecting anything that escapes it.
func (s *LocalStorage) path(ref string) (string, error) {
	if ref == "" || !filepath.IsLocal(ref) {
		return "", checkmate.Invalid("Invalid photo reference %q", ref)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(ref)), nil
}

func (s *LocalStorage) Put(ctx context.Context, r io.Reader, contentType string) (string, error) {
	ref := newRef(time.Now(), contentType)
	dest, err := s.path(ref)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(dest)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return ref, nil
}

func (s *LocalStorage) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	p, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, checkmate.NotFound("Photo %q not found", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (s *LocalStorage) Delete(ctx context.Context, ref string) error {
	p, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
