package library

import (
	"context"
	"strings"

	"LocalFM/core/apperr"
	"LocalFM/logger"
	"LocalFM/model"
)

// CreatePlaylist adds an empty playlist. An empty owner means the signed-in
// user; only a super admin may create playlists for someone else.
func (l *Library) CreatePlaylist(ctx context.Context, name, owner string, private bool) (*model.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "playlist name is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	u, err := l.requireUserLocked()
	if err != nil {
		return nil, err
	}
	if owner == "" {
		owner = u.Username
	}
	if owner != u.Username && !u.SuperAdmin {
		return nil, apperr.New(apperr.CodeForbidden, "cannot create a playlist for %s", owner)
	}

	p := &model.Playlist{
		ID:         l.doc.AllocateID(model.KindPlaylist),
		Name:       name,
		Owner:      owner,
		Tracks:     []int64{},
		Private:    private,
		SharedWith: []string{},
		CreatedAt:  l.now().UTC(),
	}
	l.doc.Playlists = append(l.doc.Playlists, p)
	if err := l.saveLocked(ctx); err != nil {
		return nil, err
	}
	logger.Info("歌单已创建", logger.Int64("playlistId", p.ID), logger.String("owner", owner))
	return clonePlaylist(p), nil
}

// ownedPlaylistLocked returns the playlist if the signed-in user owns it.
func (l *Library) ownedPlaylistLocked(playlistID int64) (*model.Playlist, error) {
	u, err := l.requireUserLocked()
	if err != nil {
		return nil, err
	}
	p := l.doc.PlaylistByID(playlistID)
	if p == nil || !p.VisibleTo(u.Username) {
		return nil, apperr.New(apperr.CodeNotFound, "playlist %d not found", playlistID)
	}
	if p.Owner != u.Username {
		return nil, apperr.New(apperr.CodeForbidden, "playlist %d belongs to %s", playlistID, p.Owner)
	}
	return p, nil
}

// AddToPlaylist appends songID to the playlist. Owner only.
func (l *Library) AddToPlaylist(ctx context.Context, playlistID, songID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, err := l.ownedPlaylistLocked(playlistID)
	if err != nil {
		return err
	}
	if l.doc.SongByID(songID) == nil {
		return apperr.New(apperr.CodeSongNotFound, "song %d not found", songID)
	}
	p.Tracks = append(p.Tracks, songID)
	return l.saveLocked(ctx)
}

// RemoveFromPlaylist drops the first occurrence of songID. Owner only.
func (l *Library) RemoveFromPlaylist(ctx context.Context, playlistID, songID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, err := l.ownedPlaylistLocked(playlistID)
	if err != nil {
		return err
	}
	for i, id := range p.Tracks {
		if id == songID {
			p.Tracks = append(p.Tracks[:i], p.Tracks[i+1:]...)
			return l.saveLocked(ctx)
		}
	}
	return apperr.New(apperr.CodeNotFound, "song %d is not in playlist %d", songID, playlistID)
}

// SharePlaylist lets username see a private playlist. Owner only.
func (l *Library) SharePlaylist(ctx context.Context, playlistID int64, username string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, err := l.ownedPlaylistLocked(playlistID)
	if err != nil {
		return err
	}
	if l.doc.UserByUsername(username) == nil {
		return apperr.New(apperr.CodeNotFound, "user %q not found", username)
	}
	var added bool
	if p.SharedWith, added = model.AddString(p.SharedWith, username); !added {
		return nil
	}
	return l.saveLocked(ctx)
}

// SetPlaylistCover stores a cover image for the playlist. Owner only.
func (l *Library) SetPlaylistCover(ctx context.Context, playlistID int64, image []byte) error {
	cover, _, err := l.processor.PrepareCover(image)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	p, err := l.ownedPlaylistLocked(playlistID)
	if err != nil {
		return err
	}
	id := model.PlaylistCoverAsset(p.ID)
	if err := l.blobs.Put(ctx, id, cover); err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "failed to store cover")
	}
	p.CoverAssetID = id
	return l.saveLocked(ctx)
}

// VisiblePlaylists returns the signed-in user's own, shared and public
// playlists. Signed out, only public ones.
func (l *Library) VisiblePlaylists() []*model.Playlist {
	l.mu.Lock()
	defer l.mu.Unlock()
	username := ""
	if l.session != nil {
		username = l.session.Username
	}
	var out []*model.Playlist
	for _, p := range l.doc.Playlists {
		if p.VisibleTo(username) {
			out = append(out, clonePlaylist(p))
		}
	}
	return out
}

// Playlist returns a visible playlist by id.
func (l *Library) Playlist(id int64) (*model.Playlist, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	username := ""
	if l.session != nil {
		username = l.session.Username
	}
	p := l.doc.PlaylistByID(id)
	if p == nil || !p.VisibleTo(username) {
		return nil, apperr.New(apperr.CodeNotFound, "playlist %d not found", id)
	}
	return clonePlaylist(p), nil
}

func clonePlaylist(p *model.Playlist) *model.Playlist {
	cp := *p
	cp.Tracks = append([]int64{}, p.Tracks...)
	cp.SharedWith = append([]string{}, p.SharedWith...)
	return &cp
}
