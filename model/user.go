package model

import "time"

// User represents a user in the library.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	Password     string    `json:"password,omitempty"` // legacy plaintext, hashed away on load
	DisplayName  string    `json:"displayName"`
	Bio          string    `json:"bio"`
	Verified     bool      `json:"verified"`
	SuperAdmin   bool      `json:"superAdmin"`
	ImageAssetID AssetID   `json:"imageAssetId"`
	CreatedAt    time.Time `json:"createdAt"`
}
