package db

import (
	"context"
	"errors"
	"fmt"

	"LocalFM/config"
)

// ErrNoDocument is returned by Read when nothing has been written yet.
var ErrNoDocument = errors.New("metadata document not found")

// DocumentStore persists the metadata document as a single opaque value.
// Write replaces the whole value; a reader never sees a partial write.
type DocumentStore interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Open returns the document backend selected by cfg.MetadataBackend.
func Open(cfg *config.Config) (DocumentStore, error) {
	switch cfg.MetadataBackend {
	case "", "file":
		return NewFileDocumentStore(cfg.MetadataPath), nil
	case "redis":
		client, err := ConnectRedis(cfg)
		if err != nil {
			return nil, err
		}
		return NewRedisDocumentStore(client, cfg.MetadataKey), nil
	case "mysql":
		gdb, err := ConnectGormDB(cfg)
		if err != nil {
			return nil, err
		}
		return NewGormDocumentStore(gdb, cfg.MetadataKey)
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", cfg.MetadataBackend)
	}
}
