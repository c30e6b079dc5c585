package model

import (
	"fmt"
	"strconv"
	"strings"
)

// AssetKind is the payload family of a blob.
type AssetKind string

const (
	AssetAudio AssetKind = "audio"
	AssetImage AssetKind = "image"
)

// Image scopes.
const (
	ScopeAlbum    = "album"
	ScopeUser     = "user"
	ScopePlaylist = "playlist"
	ScopeSong     = "song"
)

// AssetID is a blob key made of a kind, an optional scope and a raw id.
// Its text form is "<kind>:<scope>:<id>", or "<kind>:<id>" without scope.
// Keys in any other shape are kept verbatim in ID with no kind (opaque).
type AssetID struct {
	Kind  AssetKind
	Scope string
	ID    string
}

// AudioAsset is the blob key holding a song's audio.
func AudioAsset(songID int64) AssetID {
	return AssetID{Kind: AssetAudio, ID: strconv.FormatInt(songID, 10)}
}

// AlbumCoverAsset is the blob key holding an album's cover art.
func AlbumCoverAsset(albumID int64) AssetID {
	return AssetID{Kind: AssetImage, Scope: ScopeAlbum, ID: strconv.FormatInt(albumID, 10)}
}

// UserImageAsset is the blob key holding a user's profile picture.
func UserImageAsset(userID int64) AssetID {
	return AssetID{Kind: AssetImage, Scope: ScopeUser, ID: strconv.FormatInt(userID, 10)}
}

// PlaylistCoverAsset is the blob key holding a playlist's cover.
func PlaylistCoverAsset(playlistID int64) AssetID {
	return AssetID{Kind: AssetImage, Scope: ScopePlaylist, ID: strconv.FormatInt(playlistID, 10)}
}

func (a AssetID) IsZero() bool {
	return a.Kind == "" && a.Scope == "" && a.ID == ""
}

// Opaque reports a key that did not parse as kind[:scope]:id.
func (a AssetID) Opaque() bool {
	return a.Kind == "" && a.ID != ""
}

func (a AssetID) String() string {
	if a.IsZero() {
		return ""
	}
	if a.Opaque() {
		return a.ID
	}
	if a.Scope == "" {
		return string(a.Kind) + ":" + a.ID
	}
	return string(a.Kind) + ":" + a.Scope + ":" + a.ID
}

// ParseAssetID parses the text form of an asset id. The empty string parses
// to the zero AssetID.
func ParseAssetID(s string) (AssetID, error) {
	if s == "" {
		return AssetID{}, nil
	}
	parts := strings.Split(s, ":")
	var a AssetID
	switch len(parts) {
	case 2:
		a = AssetID{Kind: AssetKind(parts[0]), ID: parts[1]}
	case 3:
		a = AssetID{Kind: AssetKind(parts[0]), Scope: parts[1], ID: parts[2]}
	default:
		return AssetID{}, fmt.Errorf("invalid asset id %q", s)
	}
	if a.Kind == "" || a.ID == "" {
		return AssetID{}, fmt.Errorf("invalid asset id %q", s)
	}
	return a, nil
}

func (a AssetID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText never fails: a key it cannot parse is kept as an opaque id,
// so one odd reference cannot make a whole document unreadable.
func (a *AssetID) UnmarshalText(text []byte) error {
	parsed, err := ParseAssetID(string(text))
	if err != nil {
		*a = AssetID{ID: string(text)}
		return nil
	}
	*a = parsed
	return nil
}
