package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"LocalFM/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDocumentStoreMissing(t *testing.T) {
	s := NewFileDocumentStore(filepath.Join(t.TempDir(), "library.json"))
	_, err := s.Read(context.Background())
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestFileDocumentStoreReplacesWholeFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileDocumentStore(filepath.Join(dir, "nested", "library.json"))

	require.NoError(t, s.Write(ctx, []byte(`{"a":1,"padding":"xxxxxxxxxxxx"}`)))
	require.NoError(t, s.Write(ctx, []byte(`{"b":2}`)))

	data, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestOpenSelectsFileBackend(t *testing.T) {
	cfg := &config.Config{MetadataBackend: "file", MetadataPath: filepath.Join(t.TempDir(), "x.json")}
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()
	_, ok := s.(*FileDocumentStore)
	assert.True(t, ok)

	_, err = Open(&config.Config{MetadataBackend: "etcd"})
	assert.Error(t, err)
}
