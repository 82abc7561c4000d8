// Package storage is the object-store client for memory content blobs.
// The service stores references (object keys) in the database; the blobs
// themselves live in an S3-compatible bucket, MinIO in most deployments.
package storage

import (
	"context"
	"io"
)

// ObjectStore is the small surface the core needs from the blob store.
type ObjectStore interface {
	BucketExists(ctx context.Context) (bool, error)
	MakeBucket(ctx context.Context) error
	// EnsureBucket creates the bucket if absent, retrying transient
	// failures. Called once at startup.
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
