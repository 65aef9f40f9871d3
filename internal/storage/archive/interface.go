// Package archive stores run artifacts on a local filesystem or an S3-compatible bucket.
package archive

import (
	"context"
	"fmt"

	"github.com/newthinker/factorlab/internal/config"
	"github.com/newthinker/factorlab/internal/core"
)

// Storage is a flat key/value store addressed by slash-separated relative paths.
type Storage interface {
	// Write stores data at path, replacing any previous object
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns every path under prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists reports whether an object is stored at path
	Exists(ctx context.Context, path string) (bool, error)
}

// New builds the backend selected by cfg.Type.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "localfs":
		return NewLocalFS(cfg.Path)
	case "s3":
		return NewS3(S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("no archive backend for storage type %q", cfg.Type))
	}
}
