// Package storage uploads finished recordings and hands back a URL the
// transcriber can fetch.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/balkashynov/whisp/internal/config"
)

// Uploader stores one audio object and returns its retrieval URL.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte, mimeType string) (string, error)
}

// New builds the uploader selected by cfg.Backend.
func New(cfg config.StorageConfig, log *zap.SugaredLogger) (Uploader, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.LocalDir), nil
	case "s3":
		return NewS3(cfg.S3, cfg.PresignTTL, log)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
