package library

import (
	"context"

	"LocalFM/core/apperr"
	"LocalFM/core/upload"
	"LocalFM/logger"
	"LocalFM/model"
)

// Upload validates the files and registers a song for the signed-in user.
func (l *Library) Upload(ctx context.Context, req upload.Request) (*model.Song, error) {
	l.mu.Lock()
	u, err := l.requireUserLocked()
	var uploader string
	if err == nil {
		uploader = u.Username
	}
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	prepared, err := l.processor.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return l.register(ctx, prepared, uploader)
}

// register writes the blobs and the song/album records. Upload and the
// sample seed share it.
func (l *Library) register(ctx context.Context, p *upload.Prepared, uploader string) (*model.Song, error) {
	if p.Title == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "song title is required")
	}
	if p.Artist == "" {
		p.Artist = uploader
	}
	if p.Album == "" {
		p.Album = p.Title
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	album := l.doc.AlbumByTitle(p.Album, p.Artist)
	newAlbum := album == nil
	if newAlbum {
		album = &model.Album{
			ID:          l.doc.AllocateID(model.KindAlbum),
			Title:       p.Album,
			Artist:      p.Artist,
			Year:        p.Year,
			AccentColor: p.AccentColor,
			Tracks:      []int64{},
		}
	}
	songID := l.doc.AllocateID(model.KindSong)

	audioID := model.AudioAsset(songID)
	if err := l.blobs.Put(ctx, audioID, p.Audio); err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, err, "failed to store audio")
	}
	if newAlbum || album.CoverAssetID.IsZero() {
		coverID := model.AlbumCoverAsset(album.ID)
		if err := l.blobs.Put(ctx, coverID, p.Cover); err != nil {
			return nil, apperr.Wrap(apperr.CodeStorage, err, "failed to store cover")
		}
		album.CoverAssetID = coverID
		if album.AccentColor == "" {
			album.AccentColor = p.AccentColor
		}
	}

	song := &model.Song{
		ID:           songID,
		Title:        p.Title,
		Artist:       p.Artist,
		AlbumID:      album.ID,
		Duration:     p.Duration,
		AssetID:      audioID,
		CoverAssetID: album.CoverAssetID,
		Genre:        p.Genre,
		Language:     p.Language,
		Explicit:     p.Explicit,
		UploadedBy:   uploader,
	}
	album.Tracks = append(album.Tracks, songID)
	if newAlbum {
		l.doc.Albums = append(l.doc.Albums, album)
	}
	l.doc.Songs = append(l.doc.Songs, song)

	if err := l.saveLocked(ctx); err != nil {
		return nil, err
	}
	logger.Info("歌曲已登记",
		logger.Int64("songId", songID),
		logger.String("title", song.Title),
		logger.Int64("albumId", album.ID))
	cp := *song
	return &cp, nil
}
