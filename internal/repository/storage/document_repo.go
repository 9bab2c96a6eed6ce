package storage

import (
	"context"
	"io"
	"time"
)

// DocumentRepository stores uploaded binary documents: payment receipts and
// property photos. Upload returns the object path, not a URL; presigned URLs
// are generated on demand so the bucket stays private.
type DocumentRepository interface {
	Upload(ctx context.Context, objectPath string, data io.Reader, contentType string, size int64) (string, error)
	Delete(ctx context.Context, objectPath string) error
	GeneratePresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error)
}
