package blobstore

import (
	"context"
	"fmt"

	"github.com/bigkaa/goartstore/verify-module/internal/config"
)

// New создаёт хранилище содержимого согласно VM_BLOB_BACKEND.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendLocal:
		return NewLocalStore(cfg.BlobDir, cfg.BlobPublicURL)
	case config.BlobBackendS3:
		return NewS3Store(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			PublicURL:       cfg.S3PublicURL,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	case config.BlobBackendGCS:
		return NewGCSStore(ctx, GCSConfig{
			Bucket:    cfg.GCSBucket,
			Prefix:    cfg.GCSPrefix,
			Endpoint:  cfg.GCSEndpoint,
			PublicURL: cfg.GCSPublicURL,
		})
	default:
		return nil, fmt.Errorf("неизвестный backend хранилища содержимого: %q", cfg.BlobBackend)
	}
}
