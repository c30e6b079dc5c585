package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"LocalFM/config"
	"LocalFM/core/apperr"
	"LocalFM/core/auth"
	"LocalFM/core/player"
	"LocalFM/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		DataDir:         dir,
		MetadataBackend: "file",
		MetadataPath:    filepath.Join(dir, "meta", "library.json"),
		AdminPassword:   "admin",
		BlobBackend:     "bolt",
		BlobPath:        filepath.Join(dir, "blobs", "blobs.db"),
		AudioOutput:     "silent",
		SeekGuardDelay:  10 * time.Millisecond,
		SessionSecret:   "test-secret",
	}
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, WithAuthOptions(auth.WithCost(bcrypt.MinCost)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewHealsFreshState(t *testing.T) {
	a := newApp(t, testConfig(t))
	assert.True(t, a.Report.Healed)
	admin, ok := a.Library.User("admin")
	require.True(t, ok)
	assert.True(t, admin.SuperAdmin)
	assert.Equal(t, player.StatusIdle, a.Engine.State().Status)
}

// fresh state, register and sign in, create a playlist, then play a song
// whose audio blob is gone.
func TestFreshStateScenario(t *testing.T) {
	ctx := context.Background()
	a := newApp(t, testConfig(t))

	n, err := a.Library.SeedSamples(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	_, err = a.Library.Register(ctx, "bob", "pw", "Bob")
	require.NoError(t, err)
	_, err = a.Library.Login(ctx, "bob", "pw")
	require.NoError(t, err)
	_, err = a.Library.Login(ctx, "bob", "wrong")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidCredentials))

	p, err := a.Library.CreatePlaylist(ctx, "Faves", "bob", false)
	require.NoError(t, err)
	assert.Empty(t, p.Tracks)
	assert.Equal(t, "bob", p.Owner)

	songA, ok := a.Library.Song(1)
	require.True(t, ok)
	require.NoError(t, a.Blobs.Delete(ctx, songA.AssetID))

	err = a.Engine.Play(ctx, songA.ID, []int64{songA.ID, 2})
	assert.True(t, apperr.Is(err, apperr.CodeAssetMissing))
	assert.Equal(t, player.StatusIdle, a.Engine.State().Status)
	assert.Empty(t, a.Library.RecentlyPlayed())
	assert.Zero(t, a.Resolver.Live())

	require.NoError(t, a.Engine.Play(ctx, 2, nil))
	st := a.Engine.State()
	assert.Equal(t, player.StatusPlaying, st.Status)
	assert.Equal(t, int64(2), st.SongID)
	assert.NotEmpty(t, st.CoverURL)
	assert.Equal(t, []int64{2}, a.Library.RecentlyPlayed())
}

func TestStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	first, err := New(ctx, cfg, WithAuthOptions(auth.WithCost(bcrypt.MinCost)))
	require.NoError(t, err)
	_, err = first.Library.Register(ctx, "bob", "pw", "")
	require.NoError(t, err)
	_, err = first.Library.Login(ctx, "bob", "pw")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newApp(t, cfg)
	assert.False(t, second.Report.Healed)
	_, ok := second.Library.Session()
	assert.False(t, ok, "sessions are not persisted")
	_, err = second.Library.Login(ctx, "bob", "pw")
	assert.NoError(t, err)
}

func TestUnknownBackendsFail(t *testing.T) {
	cfg := testConfig(t)
	cfg.BlobBackend = "tape"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.AudioOutput = "gramophone"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestCloseReleasesHandles(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a, err := New(ctx, cfg, WithAuthOptions(auth.WithCost(bcrypt.MinCost)))
	require.NoError(t, err)

	_, err = a.Library.SeedSamples(ctx)
	require.NoError(t, err)
	_, err = a.Resolver.Resolve(ctx, model.AudioAsset(1))
	require.NoError(t, err)
	require.NoError(t, a.Engine.Play(ctx, 1, nil))
	assert.Positive(t, a.Resolver.Live())

	require.NoError(t, a.Close())
	assert.Zero(t, a.Resolver.Live())
}
