// Package storage abstracts the blob backend that holds image binaries.
// Metadata stays in the database; only opaque objects live here.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// UploadResult describes a stored blob
type UploadResult struct {
	// URL is the public location of the stored object
	URL string `json:"url"`
	// PublicID is the backend key used for later deletion
	PublicID string `json:"public_id"`
}

// BlobStore uploads and deletes binary objects
type BlobStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (*UploadResult, error)
	Delete(ctx context.Context, publicID string) error
}

// RandomStorageKey buckets objects by upload date so listings of the
// underlying store stay navigable.
func RandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("images/%d/%d/%d/%v", d.Year(), int(d.Month()), d.Day(), uuid.New())
}
