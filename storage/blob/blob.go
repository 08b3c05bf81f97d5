// Package blob opens the configured blob storage backend.
package blob

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/storage/blob/azure"
	"github.com/mdii/portal/storage/blob/gcs"
	"github.com/mdii/portal/storage/blob/inmem"
	"github.com/mdii/portal/storage/blob/s3"
)

// Backends
const (
	BackendGCS    = "gcs"
	BackendS3     = "s3"
	BackendAzure  = "azure"
	BackendMemory = "memory"
)

func Open(ctx context.Context, cfg core.BlobConfig) (core.BlobStore, error) {
	switch cfg.Backend {
	case BackendGCS:
		return gcs.Open(ctx, cfg)
	case BackendS3:
		return s3.Open(cfg)
	case BackendAzure:
		return azure.Open(cfg, http.DefaultClient)
	case BackendMemory, "":
		return inmem.Open(), nil
	}
	return nil, errors.Errorf("unknown blob backend %q", cfg.Backend)
}
