package model

import "time"

// Playlist is an ordered, owner-curated list of songs.
type Playlist struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Owner        string    `json:"owner"`
	Tracks       []int64   `json:"tracks"`
	CoverAssetID AssetID   `json:"coverAssetId"`
	Private      bool      `json:"private"`
	SharedWith   []string  `json:"sharedWith"`
	CreatedAt    time.Time `json:"createdAt"`
}

// VisibleTo reports whether username may see the playlist.
func (p *Playlist) VisibleTo(username string) bool {
	if !p.Private || p.Owner == username {
		return true
	}
	return ContainsString(p.SharedWith, username)
}
