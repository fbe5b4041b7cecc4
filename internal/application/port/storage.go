package port

import (
	"context"
	"io"
)

// AttachmentStore persists uploaded attachment blobs
type AttachmentStore interface {
	// Save stores the blob under name and returns the URL clients use to fetch it
	Save(ctx context.Context, name, contentType string, content io.Reader, size int64) (string, error)
	Delete(ctx context.Context, name string) error
}

// PendingCountCache caches per-user pending approval counts
type PendingCountCache interface {
	// Get returns the cached count and whether it was present
	Get(ctx context.Context, userID string) (int, bool, error)
	Set(ctx context.Context, userID string, count int) error

	// Invalidate drops every cached count
	Invalidate(ctx context.Context) error
}
