package checkmate

import (
	"context"
	"io"
	"slices"
)

// BlobStore stores photo bytes behind opaque references. The engine never
// inspects the bytes; it only keeps the refs on items.
type BlobStore interface {
	// Put stores the content and returns its reference.
	// The contentType should be a valid MIME type (e.g., "image/jpeg").
	Put(ctx context.Context, r io.Reader, contentType string) (ref string, err error)

	// Get opens the content stored under ref.
	// Returns ENOTFOUND if nothing is stored under ref.
	Get(ctx context.Context, ref string) (io.ReadCloser, error)

	// Delete removes the content stored under ref.
	// Returns nil if nothing is stored under ref.
	Delete(ctx context.Context, ref string) error
}

// StorageConfig holds configuration for blob storage.
type StorageConfig struct {
	// Provider is the storage provider ("local" or "s3").
	Provider string

	// Local storage configuration
	LocalPath string

	// S3 storage configuration
	S3Bucket string
	S3Region string
	S3Prefix string
}

// Accepted content types for photo uploads.
var AcceptedImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/heic",
}

// MaxUploadSize is the maximum allowed photo size (10MB).
const MaxUploadSize = 10 * 1024 * 1024

// IsAcceptedImageType checks if a content type is accepted.
func IsAcceptedImageType(contentType string) bool {
	return slices.Contains(AcceptedImageTypes, contentType)
}
