package storage

import (
	"context"
	"io"
)

// FileStore persists certificate artifacts (original PDFs, QR images, stamped
// and signed PDFs) under opaque keys.
type FileStore interface {
	Save(ctx context.Context, key string, body io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ReadAll is a convenience for callers that need the whole artifact in memory.
func ReadAll(ctx context.Context, fs FileStore, key string) ([]byte, error) {
	rc, err := fs.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
