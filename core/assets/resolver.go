// Package assets turns asset ids into transient handles backed by blob
// store contents. Handles stay valid until released.
package assets

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"LocalFM/core/apperr"
	"LocalFM/logger"
	"LocalFM/model"
	"LocalFM/storage"

	"github.com/google/uuid"
)

// URLPrefix is the scheme of handle URLs.
const URLPrefix = "blob:"

// Handle is a resolved asset. Its bytes are held in memory until Release.
type Handle struct {
	ID          string
	AssetID     model.AssetID
	ContentType string
	CreatedAt   time.Time

	data []byte
}

// URL is the transient reference handed to consumers, "blob:<uuid>".
func (h *Handle) URL() string {
	if h == nil {
		return ""
	}
	return URLPrefix + h.ID
}

func (h *Handle) Size() int64 { return int64(len(h.data)) }

// Reader returns a fresh reader over the handle's bytes.
func (h *Handle) Reader() *bytes.Reader { return bytes.NewReader(h.data) }

// Bytes returns the handle's bytes. Callers must not modify them.
func (h *Handle) Bytes() []byte { return h.data }

// Resolver maps asset ids to handles and tracks every live handle.
type Resolver struct {
	blobs storage.BlobStore

	mu      sync.Mutex
	handles map[string]*Handle
}

func NewResolver(blobs storage.BlobStore) *Resolver {
	return &Resolver{blobs: blobs, handles: make(map[string]*Handle)}
}

// Resolve looks the asset up. An absent blob, or a zero id, yields an
// ASSET_MISSING error which callers render as a placeholder.
func (r *Resolver) Resolve(ctx context.Context, id model.AssetID) (*Handle, error) {
	if id.IsZero() {
		return nil, apperr.New(apperr.CodeAssetMissing, "no asset referenced")
	}
	blob, found, err := r.blobs.Get(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, err, "failed to read asset %s", id)
	}
	if !found {
		logger.Warn("资源不存在", logger.String("assetId", id.String()))
		return nil, apperr.New(apperr.CodeAssetMissing, "asset %s is missing", id)
	}

	h := &Handle{
		ID:          uuid.NewString(),
		AssetID:     id,
		ContentType: blob.ContentType,
		CreatedAt:   time.Now(),
		data:        blob.Data,
	}
	r.mu.Lock()
	r.handles[h.ID] = h
	r.mu.Unlock()
	logger.Debug("资源已解析", logger.String("assetId", id.String()), logger.String("handle", h.ID))
	return h, nil
}

// ResolveURL is Resolve for display: a missing asset yields "" and no error.
func (r *Resolver) ResolveURL(ctx context.Context, id model.AssetID) (*Handle, string, error) {
	h, err := r.Resolve(ctx, id)
	if apperr.Is(err, apperr.CodeAssetMissing) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return h, h.URL(), nil
}

// Release invalidates h. Releasing nil or an already released handle is a no-op.
func (r *Resolver) Release(h *Handle) {
	if h == nil {
		return
	}
	r.ReleaseID(h.ID)
}

// ReleaseID invalidates the handle with the given id and reports whether it was live.
func (r *Resolver) ReleaseID(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[id]; !ok {
		return false
	}
	delete(r.handles, id)
	return true
}

// Lookup returns a live handle by id.
func (r *Resolver) Lookup(id string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	return h, ok
}

// Live is the number of unreleased handles.
func (r *Resolver) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// ReleaseAll drops every handle, at session teardown.
func (r *Resolver) ReleaseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.handles)
	r.handles = make(map[string]*Handle)
	return n
}

// Open returns a reader for a live handle, for streaming it out.
func (r *Resolver) Open(id string) (io.ReadSeeker, *Handle, bool) {
	h, ok := r.Lookup(id)
	if !ok {
		return nil, nil, false
	}
	return h.Reader(), h, true
}
