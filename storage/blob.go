// Package storage holds the blob store: durable asset-id -> binary object
// storage for audio and cover art, independent of the metadata document.
package storage

import (
	"context"
	"errors"
	"time"

	"LocalFM/model"

	"github.com/gabriel-vasile/mimetype"
)

var errStoreClosed = errors.New("blob store is closed")

// Blob is a binary object with its content type.
type Blob struct {
	Data        []byte
	ContentType string
}

// BlobStore is the durable asset store. Get on an unknown id reports
// found=false with a nil error. Every call may block on I/O.
type BlobStore interface {
	Put(ctx context.Context, id model.AssetID, blob Blob) error
	Get(ctx context.Context, id model.AssetID) (blob Blob, found bool, err error)
	Delete(ctx context.Context, id model.AssetID) error
	Close() error
}

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Admin is implemented by stores that can enumerate and bulk-delete keys.
type Admin interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// contentTypeOf returns the declared type, sniffing the payload when empty.
func contentTypeOf(b Blob) string {
	if b.ContentType != "" {
		return b.ContentType
	}
	return mimetype.Detect(b.Data).String()
}

func validKey(id model.AssetID) error {
	if id.ID == "" {
		return errors.New("blob store: empty asset id")
	}
	return nil
}
