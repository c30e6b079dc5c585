package player

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"LocalFM/core/apperr"
	"LocalFM/core/assets"
	"LocalFM/model"
	"LocalFM/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutput struct {
	mu       sync.Mutex
	loaded   []string
	playing  bool
	position float64
	duration float64
	volume   float64
	loadErr  error
	onEnded  func()
	onError  func(error)
	closed   bool
}

func (o *fakeOutput) Load(_ context.Context, m Media) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loadErr != nil {
		return o.loadErr
	}
	o.loaded = append(o.loaded, m.Name)
	o.position = 0
	o.duration = m.Duration
	o.playing = false
	return nil
}

func (o *fakeOutput) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.playing = true
	return nil
}

func (o *fakeOutput) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.playing = false
	return nil
}

func (o *fakeOutput) Seek(seconds float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.position = seconds
	return nil
}

func (o *fakeOutput) SetVolume(v float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = v
	return nil
}

func (o *fakeOutput) Position() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.position
}

func (o *fakeOutput) Duration() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.duration
}

func (o *fakeOutput) SetEndedHandler(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onEnded = fn
}

func (o *fakeOutput) SetErrorHandler(fn func(error)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onError = fn
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (o *fakeOutput) setPosition(p float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.position = p
}

func (o *fakeOutput) end() {
	o.mu.Lock()
	fn := o.onEnded
	o.playing = false
	o.mu.Unlock()
	fn()
}

// fail reports an asynchronous device failure, as a crashed player would.
func (o *fakeOutput) fail(err error) {
	o.mu.Lock()
	fn := o.onError
	o.playing = false
	o.mu.Unlock()
	fn(err)
}

func (o *fakeOutput) isPlaying() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.playing
}

type fakeCatalog struct {
	mu    sync.Mutex
	songs map[int64]model.Song
	plays []int64
}

func (c *fakeCatalog) Song(id int64) (model.Song, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.songs[id]
	return s, ok
}

func (c *fakeCatalog) RecordPlay(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plays = append(c.plays, id)
	return nil
}

func (c *fakeCatalog) played() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.plays...)
}

type fixture struct {
	engine   *Engine
	output   *fakeOutput
	catalog  *fakeCatalog
	resolver *assets.Resolver
	blobs    *storage.BoltStore
}

// newFixture builds an engine over songs 1..n, each with audio present and
// a cover on even ids.
func newFixture(t *testing.T, n int64, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	blobs := storage.NewBoltStore(filepath.Join(t.TempDir(), "blobs.db"), storage.WithNoSync(true))
	catalog := &fakeCatalog{songs: map[int64]model.Song{}}
	for id := int64(1); id <= n; id++ {
		s := model.Song{ID: id, Title: "Song", Artist: "bob", Duration: 100, AssetID: model.AudioAsset(id), Genre: "ambient"}
		require.NoError(t, blobs.Put(ctx, s.AssetID, storage.Blob{Data: []byte("audio"), ContentType: "audio/wav"}))
		if id%2 == 0 {
			s.CoverAssetID = model.AlbumCoverAsset(id)
			require.NoError(t, blobs.Put(ctx, s.CoverAssetID, storage.Blob{Data: []byte("jpeg"), ContentType: "image/jpeg"}))
		}
		catalog.songs[id] = s
	}
	output := &fakeOutput{volume: 1}
	resolver := assets.NewResolver(blobs)
	engine := NewEngine(output, resolver, catalog, opts...)
	t.Cleanup(func() {
		_ = engine.Close()
		_ = blobs.Close()
	})
	return &fixture{engine: engine, output: output, catalog: catalog, resolver: resolver, blobs: blobs}
}

func TestPlayMissingAssetStaysIdle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	require.NoError(t, f.blobs.Delete(ctx, model.AudioAsset(1)))

	err := f.engine.Play(ctx, 1, []int64{1, 2})
	assert.True(t, apperr.Is(err, apperr.CodeAssetMissing), "got %v", err)

	st := f.engine.State()
	assert.Equal(t, StatusIdle, st.Status)
	assert.False(t, st.Playing)
	assert.Zero(t, st.SongID)
	assert.NotEmpty(t, st.Error)
	assert.Equal(t, []int64{1, 2}, st.Queue)
	assert.Empty(t, f.catalog.played())
	assert.Equal(t, 0, f.resolver.Live())
}

func TestPlayUnknownSong(t *testing.T) {
	f := newFixture(t, 1)
	err := f.engine.Play(context.Background(), 42, nil)
	assert.True(t, apperr.Is(err, apperr.CodeSongNotFound))
	assert.Equal(t, StatusIdle, f.engine.State().Status)
}

func TestPlayEmitsSongState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	require.NoError(t, f.engine.Play(ctx, 2, []int64{1, 2}))
	st := f.engine.State()
	assert.Equal(t, StatusPlaying, st.Status)
	assert.True(t, st.Playing)
	assert.Equal(t, int64(2), st.SongID)
	assert.Equal(t, "Song", st.Title)
	assert.Equal(t, "ambient", st.Genre)
	assert.Equal(t, 100.0, st.Total)
	assert.Equal(t, 1, st.Index)
	assert.Contains(t, st.CoverURL, assets.URLPrefix)
	assert.Equal(t, []int64{2}, f.catalog.played())

	// odd songs have no cover: placeholder
	require.NoError(t, f.engine.Play(ctx, 1, nil))
	assert.Empty(t, f.engine.State().CoverURL)
}

func TestPreviousHandlesAreReleased(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4)

	require.NoError(t, f.engine.Play(ctx, 2, nil))
	assert.Equal(t, 2, f.resolver.Live())
	require.NoError(t, f.engine.Play(ctx, 3, nil))
	assert.Equal(t, 1, f.resolver.Live())
	require.NoError(t, f.engine.Play(ctx, 4, nil))
	assert.Equal(t, 2, f.resolver.Live())
}

func TestNextPrevWrap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	require.NoError(t, f.engine.Play(ctx, 3, []int64{1, 2, 3}))
	assert.Equal(t, 2, f.engine.State().Index)

	require.NoError(t, f.engine.Next(ctx))
	st := f.engine.State()
	assert.Equal(t, 0, st.Index)
	assert.Equal(t, int64(1), st.SongID)

	require.NoError(t, f.engine.Prev(ctx))
	st = f.engine.State()
	assert.Equal(t, 2, st.Index)
	assert.Equal(t, int64(3), st.SongID)
}

func TestPlayOutsideQueueUsesIndexZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4)

	require.NoError(t, f.engine.Play(ctx, 4, []int64{1, 2, 3}))
	st := f.engine.State()
	assert.Equal(t, int64(4), st.SongID)
	assert.Equal(t, 0, st.Index)

	require.NoError(t, f.engine.Next(ctx))
	assert.Equal(t, int64(2), f.engine.State().SongID)
}

func TestNextOnEmptyQueueIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	require.NoError(t, f.engine.Next(ctx))
	require.NoError(t, f.engine.Prev(ctx))
	assert.Equal(t, StatusIdle, f.engine.State().Status)
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	require.NoError(t, f.engine.Toggle())
	assert.Equal(t, StatusIdle, f.engine.State().Status)

	require.NoError(t, f.engine.Play(ctx, 1, []int64{1}))
	require.NoError(t, f.engine.Toggle())
	assert.Equal(t, StatusPaused, f.engine.State().Status)
	assert.False(t, f.output.isPlaying())

	require.NoError(t, f.engine.Toggle())
	assert.Equal(t, StatusPlaying, f.engine.State().Status)
	assert.True(t, f.output.isPlaying())
}

func TestEndedAdvancesAndLoops(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	require.NoError(t, f.engine.Play(ctx, 2, []int64{1, 2}))
	f.output.end()
	st := f.engine.State()
	assert.Equal(t, int64(1), st.SongID)
	assert.Equal(t, 0, st.Index)
	assert.Equal(t, StatusPlaying, st.Status)
	assert.Equal(t, []int64{2, 1}, f.catalog.played())
}

func TestSeekGuardSuppressesPositionUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, WithSeekGuardDelay(60*time.Millisecond), WithPollInterval(5*time.Millisecond))

	require.NoError(t, f.engine.Play(ctx, 1, nil))
	require.NoError(t, f.engine.Seek(0.5))
	f.output.setPosition(10)

	st := f.engine.State()
	assert.True(t, st.Seeking)
	assert.Equal(t, 50.0, st.Elapsed)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 50.0, f.engine.State().Elapsed, "hardware position must not override the slider while seeking")

	assert.Eventually(t, func() bool {
		st := f.engine.State()
		return !st.Seeking && st.Elapsed == 10
	}, time.Second, 5*time.Millisecond)
}

func TestSeekAndVolumeValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	assert.NoError(t, f.engine.Seek(0.3), "seek while idle is a no-op")
	assert.True(t, apperr.Is(f.engine.Seek(1.5), apperr.CodeInvalidArgument))
	assert.True(t, apperr.Is(f.engine.SetVolume(-0.1), apperr.CodeInvalidArgument))

	require.NoError(t, f.engine.Play(ctx, 1, nil))
	require.NoError(t, f.engine.SetVolume(0.4))
	assert.Equal(t, 0.4, f.engine.State().Volume)
	f.output.mu.Lock()
	assert.Equal(t, 0.4, f.output.volume)
	f.output.mu.Unlock()
}

func TestHardwareFailureReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	f.output.loadErr = errors.New("device busy")

	err := f.engine.Play(ctx, 2, nil)
	assert.True(t, apperr.Is(err, apperr.CodePlaybackFailed))
	assert.Equal(t, StatusIdle, f.engine.State().Status)
	assert.Equal(t, 0, f.resolver.Live())
}

func TestOutputFailureAfterPlayReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	require.NoError(t, f.engine.Play(ctx, 2, []int64{1, 2, 3}))
	require.Equal(t, StatusPlaying, f.engine.State().Status)
	require.Equal(t, 2, f.resolver.Live(), "audio and cover")

	f.output.fail(errors.New("ffplay exited: exit status 1"))

	st := f.engine.State()
	assert.Equal(t, StatusIdle, st.Status)
	assert.False(t, st.Playing)
	assert.Zero(t, st.SongID)
	assert.Contains(t, st.Error, "exit status 1")
	assert.Equal(t, 0, f.resolver.Live(), "handles of the failed song must be released")
	assert.Equal(t, []int64{1, 2, 3}, st.Queue)

	// the queue is intact, so the user can carry on
	require.NoError(t, f.engine.Next(ctx))
	assert.Equal(t, int64(3), f.engine.State().SongID)
}

func TestOutputFailureOfReplacedMediaIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	require.NoError(t, f.engine.Play(ctx, 1, nil))

	// a newer play is in flight when the old media reports its failure
	f.engine.mu.Lock()
	f.engine.gen++
	f.engine.mu.Unlock()
	f.output.fail(errors.New("late failure"))

	st := f.engine.State()
	assert.Equal(t, StatusPlaying, st.Status)
	assert.Equal(t, int64(1), st.SongID)
	assert.Empty(t, st.Error)
}

// gatedResolver blocks resolution of one asset until released.
type gatedResolver struct {
	*assets.Resolver
	gated   model.AssetID
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedResolver) Resolve(ctx context.Context, id model.AssetID) (*assets.Handle, error) {
	if id == g.gated {
		close(g.entered)
		<-g.gate
	}
	return g.Resolver.Resolve(ctx, id)
}

func TestSupersededPlayDoesNotWin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	require.NoError(t, f.engine.Close())

	gated := &gatedResolver{
		Resolver: f.resolver,
		gated:    model.AudioAsset(1),
		entered:  make(chan struct{}),
		gate:     make(chan struct{}),
	}
	engine := NewEngine(f.output, gated, f.catalog)
	defer engine.Close()

	errc := make(chan error, 1)
	go func() { errc <- engine.Play(ctx, 1, []int64{1, 3}) }()
	<-gated.entered

	require.NoError(t, engine.Play(ctx, 3, nil))
	close(gated.gate)

	err := <-errc
	assert.True(t, apperr.Is(err, apperr.CodeSuperseded), "got %v", err)
	st := engine.State()
	assert.Equal(t, int64(3), st.SongID)
	assert.Equal(t, StatusPlaying, st.Status)
	assert.Equal(t, 1, f.resolver.Live(), "the superseded handle must be released")
	assert.Equal(t, []int64{3}, f.catalog.played())
}

func TestSubscribeReceivesLatestState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	ch, cancel := f.engine.Subscribe()
	first := <-ch
	assert.Equal(t, StatusIdle, first.Status)

	require.NoError(t, f.engine.Play(ctx, 1, nil))
	var last State
	assert.Eventually(t, func() bool {
		select {
		case last = <-ch:
		default:
		}
		return last.Status == StatusPlaying
	}, time.Second, time.Millisecond)

	cancel()
	cancel()
	for range ch {
		// drains the buffered snapshot; ends because cancel closed the channel
	}
}
