package storage

import (
	"context"
	"fmt"

	"google.golang.org/api/option"

	"tradezone/pkg/config"
)

// BlobStore persists opaque objects by key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// NewBlobStore builds the configured driver. gcsOpts are only used by the gcs driver.
func NewBlobStore(ctx context.Context, cfg config.BlobConfig, gcsOpts ...option.ClientOption) (BlobStore, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStorage(cfg.Dir)
	case "gcs":
		return NewCloudStorageClient(ctx, cfg.Bucket, gcsOpts...)
	case "s3":
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported blob driver: %s", cfg.Driver)
	}
}
