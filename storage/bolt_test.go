package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"LocalFM/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s := NewBoltStore(filepath.Join(t.TempDir(), "blobs.db"), WithNoSync(true))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltGetReturnsLastPut(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := model.AudioAsset(1)

	require.NoError(t, s.Put(ctx, id, Blob{Data: []byte("first"), ContentType: "audio/wav"}))
	require.NoError(t, s.Put(ctx, id, Blob{Data: []byte("second"), ContentType: "audio/mpeg"}))

	blob, found, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("second"), blob.Data)
	assert.Equal(t, "audio/mpeg", blob.ContentType)
}

func TestBoltGetUnknownIsAbsent(t *testing.T) {
	s := newTestStore(t)
	blob, found, err := s.Get(context.Background(), model.AlbumCoverAsset(99))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, blob.Data)
}

func TestBoltDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := model.UserImageAsset(3)

	require.NoError(t, s.Put(ctx, id, Blob{Data: []byte{1, 2, 3}}))
	require.NoError(t, s.Delete(ctx, id))
	_, found, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)

	// deleting twice is fine
	require.NoError(t, s.Delete(ctx, id))
}

func TestBoltSniffsMissingContentType(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := model.AudioAsset(5)

	require.NoError(t, s.Put(ctx, id, Blob{Data: []byte("hello world")}))
	blob, found, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, blob.ContentType, "text/plain")
}

func TestBoltConcurrentOpensCoalesce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.Get(ctx, model.AudioAsset(int64(i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, s.opens)
}

func TestBoltSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "blobs.db")

	s := NewBoltStore(path, WithOpenTimeout(time.Second))
	require.NoError(t, s.Put(ctx, model.AudioAsset(1), Blob{Data: []byte("tone")}))
	require.NoError(t, s.Close())

	reopened := NewBoltStore(path)
	defer reopened.Close()
	blob, found, err := reopened.Get(ctx, model.AudioAsset(1))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("tone"), blob.Data)
}

func TestBoltListAndDeletePrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, model.AudioAsset(1), Blob{Data: []byte("a")}))
	require.NoError(t, s.Put(ctx, model.AudioAsset(2), Blob{Data: []byte("bb")}))
	require.NoError(t, s.Put(ctx, model.AlbumCoverAsset(1), Blob{Data: []byte("ccc")}))

	objects, err := s.List(ctx, "audio:")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "audio:1", objects[0].Key)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	stats := Summarize(all)
	assert.Equal(t, int64(3), stats.TotalObjects)
	assert.Equal(t, int64(6), stats.TotalSize)
	assert.Equal(t, int64(2), stats.ByKind["audio"])
	assert.Equal(t, int64(1), stats.ByKind["image:album"])

	n, err := s.DeletePrefix(ctx, "audio:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, found, err := s.Get(ctx, model.AlbumCoverAsset(1))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestBoltClosedStoreFails(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())
	_, _, err := s.Get(context.Background(), model.AudioAsset(1))
	assert.ErrorIs(t, err, errStoreClosed)
}

func TestBoltRejectsZeroID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.Put(context.Background(), model.AssetID{}, Blob{Data: []byte("x")}))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KB", FormatSize(1536))
	assert.Equal(t, "2.0 MB", FormatSize(2*1024*1024))
}
