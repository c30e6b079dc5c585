package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"LocalFM/core/player"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSineWAVDuration(t *testing.T) {
	data := SineWAV(440, 1.5, 8000)
	d, err := WAVDuration(data)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, d, 0.001)

	_, err = WAVDuration([]byte("ID3 not a wav"))
	assert.Error(t, err)
}

func TestProberUsesWAVHeader(t *testing.T) {
	p := NewFFprobe("/nonexistent/ffmpeg")
	d, err := p.Duration(context.Background(), SineWAV(220, 0.5, 8000))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, d, 0.001)
}

func TestSilentOutputEndsOnce(t *testing.T) {
	o := NewSilentOutput()
	var ended atomic.Int32
	o.SetEndedHandler(func() { ended.Add(1) })

	require.NoError(t, o.Load(context.Background(), player.Media{Duration: 0.05}))
	require.NoError(t, o.Play())
	assert.Eventually(t, func() bool { return ended.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 0.05, o.Position(), 0.0001)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), ended.Load())
}

func TestSilentOutputReloadCancelsEnd(t *testing.T) {
	o := NewSilentOutput()
	var ended atomic.Int32
	o.SetEndedHandler(func() { ended.Add(1) })

	require.NoError(t, o.Load(context.Background(), player.Media{Duration: 0.03}))
	require.NoError(t, o.Play())
	require.NoError(t, o.Load(context.Background(), player.Media{Duration: 10}))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), ended.Load())
}

func TestSilentOutputPauseAndSeek(t *testing.T) {
	o := NewSilentOutput()
	assert.ErrorIs(t, o.Play(), errNothingLoaded)

	require.NoError(t, o.Load(context.Background(), player.Media{Duration: 100}))
	require.NoError(t, o.Seek(40))
	assert.InDelta(t, 40, o.Position(), 0.001)

	require.NoError(t, o.Play())
	require.NoError(t, o.Pause())
	pos := o.Position()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, pos, o.Position(), "paused position must not move")

	require.NoError(t, o.Seek(500))
	assert.Equal(t, 100.0, o.Position())
	require.NoError(t, o.Seek(-3))
	assert.Equal(t, 0.0, o.Position())

	require.NoError(t, o.SetVolume(0.25))
	assert.Equal(t, 0.25, o.Volume())
}

// fakeFFplay installs an executable named ffplay that exits with code and
// returns the ffmpeg path that NewFFplayOutput expects next to it.
func fakeFFplay(t *testing.T, code string) string {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\nexit " + code + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ffplay"), []byte(script), 0o755))
	return filepath.Join(dir, "ffmpeg")
}

func TestFFplayExitFailureIsReported(t *testing.T) {
	o := NewFFplayOutput(fakeFFplay(t, "1"), t.TempDir())
	defer o.Close()

	var ended atomic.Int32
	failures := make(chan error, 1)
	o.SetEndedHandler(func() { ended.Add(1) })
	o.SetErrorHandler(func(err error) { failures <- err })

	require.NoError(t, o.Load(context.Background(), player.Media{Name: "audio:1", Data: SineWAV(440, 2, 8000)}))
	require.NoError(t, o.Play())

	select {
	case err := <-failures:
		var exitErr *exec.ExitError
		assert.True(t, errors.As(err, &exitErr), "got %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("ffplay failure was not reported")
	}
	assert.Equal(t, int32(0), ended.Load())
	assert.Less(t, o.Position(), 2.0)
}

func TestFFplayCleanExitEnds(t *testing.T) {
	o := NewFFplayOutput(fakeFFplay(t, "0"), t.TempDir())
	defer o.Close()

	var failed atomic.Int32
	ended := make(chan struct{}, 1)
	o.SetEndedHandler(func() { ended <- struct{}{} })
	o.SetErrorHandler(func(error) { failed.Add(1) })

	require.NoError(t, o.Load(context.Background(), player.Media{Name: "audio:1", Data: SineWAV(440, 0.5, 8000)}))
	require.NoError(t, o.Play())

	select {
	case <-ended:
	case <-time.After(3 * time.Second):
		t.Fatal("ended handler did not fire")
	}
	assert.Equal(t, int32(0), failed.Load())
	assert.InDelta(t, 0.5, o.Position(), 0.001)
}
