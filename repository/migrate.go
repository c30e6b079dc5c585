package repository

import (
	"encoding/json"
	"fmt"

	"LocalFM/model"
)

// PasswordHasher hashes a plaintext password for storage.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// decode parses a stored document. The schema version is read separately so
// a document without one is treated as version 0.
func decode(data []byte) (*model.Document, int, error) {
	var head struct {
		SchemaVersion *int `json:"schemaVersion"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, 0, fmt.Errorf("malformed document: %w", err)
	}
	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("malformed document: %w", err)
	}
	version := 0
	if head.SchemaVersion != nil {
		version = *head.SchemaVersion
	}
	return &doc, version, nil
}

// Migrate brings doc from version to model.SchemaVersion in place and reports
// whether anything had to change. It runs once per load.
func Migrate(doc *model.Document, version int, hasher PasswordHasher) (bool, error) {
	changed := version < model.SchemaVersion
	doc.Normalize()

	if version < 1 {
		migrateV0(doc)
	}

	// Plaintext passwords may survive from any hand-edited document.
	for _, u := range doc.Users {
		if u.Password == "" {
			continue
		}
		if u.PasswordHash == "" {
			hash, err := hasher.Hash(u.Password)
			if err != nil {
				return false, fmt.Errorf("hash password of %s: %w", u.Username, err)
			}
			u.PasswordHash = hash
		}
		u.Password = ""
		changed = true
	}

	if fixCounters(doc) {
		changed = true
	}
	if version < model.SchemaVersion {
		doc.SchemaVersion = model.SchemaVersion
	}
	return changed, nil
}

// v0 documents had no schemaVersion and no guarantees on set uniqueness or
// the recently played cap.
func migrateV0(doc *model.Document) {
	var recent []int64
	for i := len(doc.RecentlyPlayed) - 1; i >= 0; i-- {
		recent = model.PrependUnique(recent, doc.RecentlyPlayed[i], model.RecentlyPlayedLimit)
	}
	if recent == nil {
		recent = []int64{}
	}
	doc.RecentlyPlayed = recent

	for songID, users := range doc.Likes {
		doc.Likes[songID] = dedupe(users)
	}
	for target, users := range doc.Followers {
		doc.Followers[target] = dedupe(users)
	}
}

// fixCounters makes every id counter exceed the highest id in use.
func fixCounters(doc *model.Document) bool {
	changed := false
	bump := func(counter *int64, id int64) {
		if id >= *counter {
			*counter = id + 1
			changed = true
		}
	}
	for _, u := range doc.Users {
		bump(&doc.NextIDs.User, u.ID)
	}
	for _, s := range doc.Songs {
		bump(&doc.NextIDs.Song, s.ID)
	}
	for _, a := range doc.Albums {
		bump(&doc.NextIDs.Album, a.ID)
	}
	for _, p := range doc.Playlists {
		bump(&doc.NextIDs.Playlist, p.ID)
	}
	return changed
}

func dedupe(set []string) []string {
	out := make([]string, 0, len(set))
	for _, v := range set {
		out, _ = model.AddString(out, v)
	}
	return out
}
