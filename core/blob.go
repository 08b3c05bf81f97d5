package core

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned by BlobStore.Get when the key does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore is a flat key -> bytes object store (GCS, S3, Azure container...).
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
}
