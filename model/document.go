package model

import "slices"

// SchemaVersion is the version written by this build.
const SchemaVersion = 1

// RecentlyPlayedLimit caps Document.RecentlyPlayed.
const RecentlyPlayedLimit = 50

// EntityKind names an id counter in NextIDs.
type EntityKind string

const (
	KindUser     EntityKind = "user"
	KindSong     EntityKind = "song"
	KindAlbum    EntityKind = "album"
	KindPlaylist EntityKind = "playlist"
)

// NextIDs holds the next id to hand out per entity kind. Counters only grow.
type NextIDs struct {
	User     int64 `json:"user"`
	Song     int64 `json:"song"`
	Album    int64 `json:"album"`
	Playlist int64 `json:"playlist"`
}

// Document is the whole metadata store, loaded and saved as one unit.
type Document struct {
	SchemaVersion  int                 `json:"schemaVersion"`
	Users          []*User             `json:"users"`
	Songs          []*Song             `json:"songs"`
	Albums         []*Album            `json:"albums"`
	Playlists      []*Playlist         `json:"playlists"`
	Likes          map[int64][]string  `json:"likes"`     // song id -> usernames
	Followers      map[string][]string `json:"followers"` // target username -> follower usernames
	RecentlyPlayed []int64             `json:"recentlyPlayed"`
	NextIDs        NextIDs             `json:"nextIds"`
}

// NewDocument returns an empty document at the current schema version.
func NewDocument() *Document {
	doc := &Document{SchemaVersion: SchemaVersion}
	doc.Normalize()
	return doc
}

// Normalize replaces nil collections with empty ones and makes every id
// counter start at 1 or above.
func (d *Document) Normalize() {
	if d.Users == nil {
		d.Users = []*User{}
	}
	if d.Songs == nil {
		d.Songs = []*Song{}
	}
	if d.Albums == nil {
		d.Albums = []*Album{}
	}
	if d.Playlists == nil {
		d.Playlists = []*Playlist{}
	}
	if d.Likes == nil {
		d.Likes = map[int64][]string{}
	}
	if d.Followers == nil {
		d.Followers = map[string][]string{}
	}
	if d.RecentlyPlayed == nil {
		d.RecentlyPlayed = []int64{}
	}
	for _, a := range d.Albums {
		if a.Tracks == nil {
			a.Tracks = []int64{}
		}
	}
	for _, p := range d.Playlists {
		if p.Tracks == nil {
			p.Tracks = []int64{}
		}
		if p.SharedWith == nil {
			p.SharedWith = []string{}
		}
	}
	d.NextIDs.User = max(d.NextIDs.User, 1)
	d.NextIDs.Song = max(d.NextIDs.Song, 1)
	d.NextIDs.Album = max(d.NextIDs.Album, 1)
	d.NextIDs.Playlist = max(d.NextIDs.Playlist, 1)
}

// AllocateID hands out the next id for kind and advances the counter.
func (d *Document) AllocateID(kind EntityKind) int64 {
	var counter *int64
	switch kind {
	case KindUser:
		counter = &d.NextIDs.User
	case KindSong:
		counter = &d.NextIDs.Song
	case KindAlbum:
		counter = &d.NextIDs.Album
	case KindPlaylist:
		counter = &d.NextIDs.Playlist
	default:
		panic("model: unknown entity kind " + string(kind))
	}
	if *counter < 1 {
		*counter = 1
	}
	id := *counter
	*counter++
	return id
}

func (d *Document) UserByUsername(username string) *User {
	for _, u := range d.Users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

func (d *Document) UserByID(id int64) *User {
	for _, u := range d.Users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (d *Document) SongByID(id int64) *Song {
	for _, s := range d.Songs {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (d *Document) AlbumByID(id int64) *Album {
	for _, a := range d.Albums {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// AlbumByTitle finds an album by exact title and artist.
func (d *Document) AlbumByTitle(title, artist string) *Album {
	for _, a := range d.Albums {
		if a.Title == title && a.Artist == artist {
			return a
		}
	}
	return nil
}

func (d *Document) PlaylistByID(id int64) *Playlist {
	for _, p := range d.Playlists {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PushRecentlyPlayed moves songID to the front, dropping any earlier
// occurrence and anything past RecentlyPlayedLimit.
func (d *Document) PushRecentlyPlayed(songID int64) {
	d.RecentlyPlayed = PrependUnique(d.RecentlyPlayed, songID, RecentlyPlayedLimit)
}

// PrependUnique returns ids with id at the front, no duplicates, at most limit long.
func PrependUnique(ids []int64, id int64, limit int) []int64 {
	out := make([]int64, 0, min(len(ids)+1, limit))
	out = append(out, id)
	for _, existing := range ids {
		if len(out) >= limit {
			break
		}
		if existing == id || slices.Contains(out, existing) {
			continue
		}
		out = append(out, existing)
	}
	return out
}

// ContainsString reports whether set holds v.
func ContainsString(set []string, v string) bool {
	return slices.Contains(set, v)
}

// AddString adds v to set. The bool is false when v was already present.
func AddString(set []string, v string) ([]string, bool) {
	if slices.Contains(set, v) {
		return set, false
	}
	return append(set, v), true
}

// RemoveString removes v from set. The bool is false when v was absent.
func RemoveString(set []string, v string) ([]string, bool) {
	i := slices.Index(set, v)
	if i < 0 {
		return set, false
	}
	return slices.Delete(set, i, i+1), true
}
