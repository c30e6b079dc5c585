package repository

import (
	"context"
	"fmt"

	"LocalFM/model"
	"LocalFM/storage"
)

// Issue is one broken reference found by CheckIntegrity.
type Issue struct {
	Entity  model.EntityKind
	ID      int64
	Field   string
	AssetID model.AssetID // zero for non-asset references
	Problem string
}

func (i Issue) String() string {
	if i.AssetID.IsZero() {
		return fmt.Sprintf("%s %d: %s %s", i.Entity, i.ID, i.Field, i.Problem)
	}
	return fmt.Sprintf("%s %d: %s %s (%s)", i.Entity, i.ID, i.Field, i.Problem, i.AssetID)
}

// assetRef is one asset reference held by an entity.
type assetRef struct {
	Entity model.EntityKind
	ID     int64
	Field  string
	Asset  model.AssetID
}

// assetRefs lists every non-empty asset reference in doc.
func assetRefs(doc *model.Document) []assetRef {
	var refs []assetRef
	add := func(kind model.EntityKind, id int64, field string, asset model.AssetID) {
		if !asset.IsZero() {
			refs = append(refs, assetRef{Entity: kind, ID: id, Field: field, Asset: asset})
		}
	}
	for _, u := range doc.Users {
		add(model.KindUser, u.ID, "imageAssetId", u.ImageAssetID)
	}
	for _, s := range doc.Songs {
		add(model.KindSong, s.ID, "assetId", s.AssetID)
		add(model.KindSong, s.ID, "coverAssetId", s.CoverAssetID)
	}
	for _, a := range doc.Albums {
		add(model.KindAlbum, a.ID, "coverAssetId", a.CoverAssetID)
	}
	for _, p := range doc.Playlists {
		add(model.KindPlaylist, p.ID, "coverAssetId", p.CoverAssetID)
	}
	return refs
}

// CheckIntegrity lists asset references whose blob is absent or whose key is
// not in kind[:scope]:id form, songs whose album does not exist and playlist
// tracks that point at no song.
func CheckIntegrity(ctx context.Context, doc *model.Document, blobs storage.BlobStore) ([]Issue, error) {
	var issues []Issue
	for _, ref := range assetRefs(doc) {
		if ref.Asset.Opaque() {
			issues = append(issues, Issue{Entity: ref.Entity, ID: ref.ID, Field: ref.Field, AssetID: ref.Asset, Problem: "unrecognised asset id"})
		}
		_, found, err := blobs.Get(ctx, ref.Asset)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", ref.Asset, err)
		}
		if !found {
			issues = append(issues, Issue{Entity: ref.Entity, ID: ref.ID, Field: ref.Field, AssetID: ref.Asset, Problem: "missing blob"})
		}
	}

	for _, s := range doc.Songs {
		if s.AlbumID != 0 && doc.AlbumByID(s.AlbumID) == nil {
			issues = append(issues, Issue{Entity: model.KindSong, ID: s.ID, Field: "albumId", Problem: "unknown album"})
		}
	}
	for _, p := range doc.Playlists {
		for _, songID := range p.Tracks {
			if doc.SongByID(songID) == nil {
				issues = append(issues, Issue{Entity: model.KindPlaylist, ID: p.ID, Field: "tracks", Problem: fmt.Sprintf("unknown song %d", songID)})
			}
		}
	}
	return issues, nil
}
