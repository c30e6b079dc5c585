package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"LocalFM/core/audio"
	"LocalFM/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingImporter struct {
	mu   sync.Mutex
	reqs []Request
	fail bool
}

func (r *recordingImporter) Upload(_ context.Context, req Request) (*model.Song, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	if r.fail {
		return nil, errors.New("rejected")
	}
	return &model.Song{ID: int64(len(r.reqs))}, nil
}

func (r *recordingImporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reqs)
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o640))
}

func TestImportPendingPairs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "hum.wav"), audio.SineWAV(110, 0.1, 8000))
	writeFile(t, filepath.Join(dir, "hum.png"), pngImage(t, 20, 20))
	writeFile(t, filepath.Join(dir, "lonely.wav"), audio.SineWAV(110, 0.1, 8000))

	imp := &recordingImporter{}
	results, err := NewWatcher(dir, imp).ImportPending(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hum", results[0].Name)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "hum.wav", imp.reqs[0].Filename)

	assert.FileExists(t, filepath.Join(dir, "done", "hum.wav"))
	assert.FileExists(t, filepath.Join(dir, "done", "hum.png"))
	assert.FileExists(t, filepath.Join(dir, "lonely.wav"), "audio without cover waits")
}

func TestImportPendingFailureMovesToFailed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.mp3"), []byte("ID3"))
	writeFile(t, filepath.Join(dir, "bad.jpg"), []byte("jpeg"))

	results, err := NewWatcher(dir, &recordingImporter{fail: true}).ImportPending(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.FileExists(t, filepath.Join(dir, "failed", "bad.mp3"))
	assert.FileExists(t, filepath.Join(dir, "failed", "bad.error.txt"))
}

func TestRunPicksUpNewPairs(t *testing.T) {
	dir := t.TempDir()
	imp := &recordingImporter{}
	w := NewWatcher(dir, imp).WithSettle(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// give the watcher time to register the directory
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "done"))
		return err == nil
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	writeFile(t, filepath.Join(dir, "late.wav"), audio.SineWAV(110, 0.1, 8000))
	writeFile(t, filepath.Join(dir, "late.webp"), []byte("RIFF....WEBP"))

	assert.Eventually(t, func() bool { return imp.count() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "done", "late.wav"))
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)
}
