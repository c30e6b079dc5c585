package library

import (
	"context"
	"image/color"
	"path/filepath"
	"testing"

	"LocalFM/core/apperr"
	"LocalFM/core/audio"
	"LocalFM/core/auth"
	"LocalFM/core/upload"
	"LocalFM/db"
	"LocalFM/model"
	"LocalFM/repository"
	"LocalFM/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type env struct {
	lib   *Library
	store *repository.MetadataStore
	blobs *storage.BoltStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	authn := auth.NewAuthenticator("test-secret", auth.WithCost(bcrypt.MinCost))
	store := repository.NewMetadataStore(db.NewFileDocumentStore(filepath.Join(dir, "library.json")), authn, "admin-pw")
	blobs := storage.NewBoltStore(filepath.Join(dir, "blobs.db"), storage.WithNoSync(true))
	t.Cleanup(func() { _ = blobs.Close() })

	doc, _, err := store.Load(context.Background())
	require.NoError(t, err)
	lib := New(doc, store, blobs, authn, upload.NewProcessor(audio.NewFFprobe("")))
	return &env{lib: lib, store: store, blobs: blobs}
}

// reload reads the persisted document back.
func (e *env) reload(t *testing.T) *model.Document {
	t.Helper()
	doc, report, err := e.store.Load(context.Background())
	require.NoError(t, err)
	require.False(t, report.Healed)
	return doc
}

func (e *env) signUp(t *testing.T, username string) {
	t.Helper()
	ctx := context.Background()
	_, err := e.lib.Register(ctx, username, "pw-"+username, "")
	require.NoError(t, err)
	_, err = e.lib.Login(ctx, username, "pw-"+username)
	require.NoError(t, err)
}

func coverPNG(t *testing.T, size int) []byte {
	t.Helper()
	data, err := gradientPNG(size, color.NRGBA{0x30, 0x90, 0xc0, 0xff}, color.NRGBA{0xf0, 0x60, 0x20, 0xff})
	require.NoError(t, err)
	return data
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	u, err := e.lib.Register(ctx, "bob", "pw", "Bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob", u.DisplayName)
	assert.NotEqual(t, "pw", u.PasswordHash)

	s, err := e.lib.Login(ctx, "bob", "pw")
	require.NoError(t, err)
	assert.Equal(t, "bob", s.Username)
	assert.NotEmpty(t, s.Token)
	cur, ok := e.lib.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, u.ID, cur.ID)

	for _, c := range [][2]string{{"bob", "wrong"}, {"Bob", "pw"}, {"bob", "PW"}, {"alice", "pw"}, {"bob", ""}} {
		_, err := e.lib.Login(ctx, c[0], c[1])
		assert.True(t, apperr.Is(err, apperr.CodeInvalidCredentials), "%v", c)
	}

	e.lib.Logout()
	_, ok = e.lib.CurrentUser()
	assert.False(t, ok)
}

func TestRegisterDuplicateLeavesUsersUntouched(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.lib.Register(ctx, "bob", "pw", "Bob")
	require.NoError(t, err)

	var before []model.User
	e.lib.View(func(doc *model.Document) {
		for _, u := range doc.Users {
			before = append(before, *u)
		}
	})

	_, err = e.lib.Register(ctx, "bob", "other", "Impostor")
	assert.True(t, apperr.Is(err, apperr.CodeUsernameExists))
	_, err = e.lib.Register(ctx, "admin", "x", "")
	assert.True(t, apperr.Is(err, apperr.CodeUsernameExists))

	var after []model.User
	e.lib.View(func(doc *model.Document) {
		for _, u := range doc.Users {
			after = append(after, *u)
		}
	})
	assert.Equal(t, before, after)

	_, err = e.lib.Login(ctx, "bob", "other")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidCredentials))
}

func TestRegisterIsPersistedHashed(t *testing.T) {
	e := newEnv(t)
	_, err := e.lib.Register(context.Background(), "bob", "pw", "Bob")
	require.NoError(t, err)

	bob := e.reload(t).UserByUsername("bob")
	require.NotNil(t, bob)
	assert.Empty(t, bob.Password)
	assert.True(t, auth.CheckPasswordHash("pw", bob.PasswordHash))
}

func TestBootstrapAdminCanSignIn(t *testing.T) {
	e := newEnv(t)
	s, err := e.lib.Login(context.Background(), repository.AdminUsername, "admin-pw")
	require.NoError(t, err)
	u, _ := e.lib.User(s.Username)
	assert.True(t, u.SuperAdmin)
}

func TestMutatorsRequireSignIn(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	assert.True(t, apperr.Is(e.lib.Follow(ctx, "bob"), apperr.CodeNotSignedIn))
	assert.True(t, apperr.Is(e.lib.Unfollow(ctx, "bob"), apperr.CodeNotSignedIn))
	assert.True(t, apperr.Is(e.lib.Like(ctx, 1), apperr.CodeNotSignedIn))
	_, err := e.lib.CreatePlaylist(ctx, "Faves", "bob", false)
	assert.True(t, apperr.Is(err, apperr.CodeNotSignedIn))
	_, err = e.lib.Upload(ctx, upload.Request{})
	assert.True(t, apperr.Is(err, apperr.CodeNotSignedIn))
	assert.True(t, apperr.Is(e.lib.UpdateProfile(ctx, "x", "y"), apperr.CodeNotSignedIn))
}

func TestFollowIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.signUp(t, "amy")

	require.NoError(t, e.lib.Follow(ctx, "bob"))
	require.NoError(t, e.lib.Follow(ctx, "bob"))
	assert.Equal(t, []string{"amy"}, e.lib.Followers("bob"))
	assert.True(t, e.lib.IsFollowing("bob"))
	assert.Equal(t, []string{"amy"}, e.reload(t).Followers["bob"])

	require.NoError(t, e.lib.Unfollow(ctx, "carol"))
	assert.Equal(t, 0, e.lib.FollowerCount("carol"))

	require.NoError(t, e.lib.Unfollow(ctx, "bob"))
	require.NoError(t, e.lib.Unfollow(ctx, "bob"))
	assert.Equal(t, 0, e.lib.FollowerCount("bob"))
	assert.False(t, e.lib.IsFollowing("bob"))
	assert.Empty(t, e.reload(t).Followers["bob"])
}

func TestLikeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.lib.SeedSamples(ctx)
	require.NoError(t, err)
	e.signUp(t, "amy")

	assert.True(t, apperr.Is(e.lib.Like(ctx, 999), apperr.CodeSongNotFound))

	require.NoError(t, e.lib.Like(ctx, 1))
	require.NoError(t, e.lib.Like(ctx, 1))
	assert.Equal(t, 1, e.lib.LikeCount(1))
	assert.True(t, e.lib.IsLiked(1))
	assert.Equal(t, []string{"amy"}, e.reload(t).Likes[1])

	require.NoError(t, e.lib.Unlike(ctx, 1))
	require.NoError(t, e.lib.Unlike(ctx, 1))
	assert.Equal(t, 0, e.lib.LikeCount(1))
}

func TestCreatePlaylist(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.signUp(t, "bob")

	p, err := e.lib.CreatePlaylist(ctx, "Faves", "bob", false)
	require.NoError(t, err)
	assert.Equal(t, "bob", p.Owner)
	assert.Equal(t, []int64{}, p.Tracks)
	assert.False(t, p.Private)

	q, err := e.lib.CreatePlaylist(ctx, "More", "", true)
	require.NoError(t, err)
	assert.Greater(t, q.ID, p.ID)

	_, err = e.lib.CreatePlaylist(ctx, "Theirs", "amy", false)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))
	_, err = e.lib.CreatePlaylist(ctx, "  ", "bob", false)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	stored := e.reload(t).PlaylistByID(p.ID)
	require.NotNil(t, stored)
	assert.Equal(t, "Faves", stored.Name)
	assert.Equal(t, p.ID+2, e.reload(t).NextIDs.Playlist)
}

func TestPlaylistOwnershipAndSharing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.lib.SeedSamples(ctx)
	require.NoError(t, err)
	e.signUp(t, "carol")
	e.signUp(t, "amy")
	e.signUp(t, "bob")

	p, err := e.lib.CreatePlaylist(ctx, "Secret", "bob", true)
	require.NoError(t, err)
	require.NoError(t, e.lib.AddToPlaylist(ctx, p.ID, 1))
	require.NoError(t, e.lib.AddToPlaylist(ctx, p.ID, 2))
	require.NoError(t, e.lib.AddToPlaylist(ctx, p.ID, 1))
	assert.True(t, apperr.Is(e.lib.AddToPlaylist(ctx, p.ID, 99), apperr.CodeSongNotFound))
	require.NoError(t, e.lib.RemoveFromPlaylist(ctx, p.ID, 1))
	got, err := e.lib.Playlist(p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, got.Tracks)

	require.NoError(t, e.lib.SharePlaylist(ctx, p.ID, "amy"))
	require.NoError(t, e.lib.SharePlaylist(ctx, p.ID, "amy"))
	assert.True(t, apperr.Is(e.lib.SharePlaylist(ctx, p.ID, "nobody"), apperr.CodeNotFound))

	_, err = e.lib.Login(ctx, "amy", "pw-amy")
	require.NoError(t, err)
	assert.Len(t, e.lib.VisiblePlaylists(), 1)
	assert.True(t, apperr.Is(e.lib.AddToPlaylist(ctx, p.ID, 3), apperr.CodeForbidden))

	_, err = e.lib.Login(ctx, "carol", "pw-carol")
	require.NoError(t, err)
	assert.Empty(t, e.lib.VisiblePlaylists())
	_, err = e.lib.Playlist(p.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestUploadRegistersSongAndAlbum(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.signUp(t, "bob")

	_, err := e.lib.Upload(ctx, upload.Request{
		Title: "Tiny",
		Audio: audio.SineWAV(440, 0.5, 8000),
		Cover: coverPNG(t, 500),
	})
	assert.True(t, apperr.Is(err, apperr.CodeCoverTooSmall))
	e.lib.View(func(doc *model.Document) { assert.Empty(t, doc.Songs) })

	first, err := e.lib.Upload(ctx, upload.Request{
		Title: "One", Album: "Pair", Genre: "drone", Language: "none",
		Audio: audio.SineWAV(440, 0.5, 8000),
		Cover: coverPNG(t, 1000),
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", first.Artist)
	assert.Equal(t, "bob", first.UploadedBy)
	assert.InDelta(t, 0.5, first.Duration, 0.001)
	assert.Equal(t, model.AudioAsset(first.ID), first.AssetID)
	assert.Equal(t, model.AlbumCoverAsset(first.AlbumID), first.CoverAssetID)

	second, err := e.lib.Upload(ctx, upload.Request{
		Title: "Two", Album: "Pair",
		Audio: audio.SineWAV(220, 0.5, 8000),
		Cover: coverPNG(t, 1000),
	})
	require.NoError(t, err)
	assert.Equal(t, first.AlbumID, second.AlbumID)

	doc := e.reload(t)
	album := doc.AlbumByID(first.AlbumID)
	require.NotNil(t, album)
	assert.Equal(t, []int64{first.ID, second.ID}, album.Tracks)

	for _, id := range []model.AssetID{first.AssetID, second.AssetID, album.CoverAssetID} {
		blob, found, err := e.blobs.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, found, id.String())
		assert.NotEmpty(t, blob.ContentType)
	}
	issues, err := repository.CheckIntegrity(ctx, doc, e.blobs)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestSeedSamplesOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	n, err := e.lib.SeedSamples(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(samples), n)

	n, err = e.lib.SeedSamples(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	doc := e.reload(t)
	assert.Len(t, doc.Songs, len(samples))
	tones := doc.AlbumByTitle("Test Tones", "localfm")
	require.NotNil(t, tones)
	assert.Len(t, tones.Tracks, 3)
	for _, s := range doc.Songs {
		assert.InDelta(t, SampleSeconds, s.Duration, 0.01)
	}
}

func TestRecordPlayCapsAndDedupes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	for i := int64(1); i <= 70; i++ {
		require.NoError(t, e.lib.RecordPlay(ctx, i))
		require.NoError(t, e.lib.RecordPlay(ctx, 3))
	}
	recent := e.lib.RecentlyPlayed()
	assert.Len(t, recent, model.RecentlyPlayedLimit)
	assert.Equal(t, int64(3), recent[0])
	assert.Equal(t, int64(70), recent[1])

	assert.Equal(t, recent, e.reload(t).RecentlyPlayed)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.signUp(t, "bob")

	require.NoError(t, e.lib.UpdateProfile(ctx, "Bobby", "hums a lot"))
	require.NoError(t, e.lib.SetProfileImage(ctx, coverPNG(t, 64)))
	assert.True(t, apperr.Is(e.lib.SetProfileImage(ctx, []byte("nope")), apperr.CodeInvalidArgument))

	u, ok := e.lib.User("bob")
	require.True(t, ok)
	assert.Equal(t, "Bobby", u.DisplayName)
	assert.Equal(t, "hums a lot", u.Bio)
	assert.Equal(t, model.UserImageAsset(u.ID), u.ImageAssetID)

	_, found, err := e.blobs.Get(ctx, u.ImageAssetID)
	require.NoError(t, err)
	assert.True(t, found)
}
