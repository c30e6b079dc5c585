package model

// Song represents an audio track in the music library.
// Artist is a display username, not an enforced reference.
type Song struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Artist       string  `json:"artist"`
	AlbumID      int64   `json:"albumId"`
	Duration     float64 `json:"duration"` // Duration in seconds
	AssetID      AssetID `json:"assetId"`
	CoverAssetID AssetID `json:"coverAssetId"`
	Genre        string  `json:"genre"`
	Language     string  `json:"language"`
	Explicit     bool    `json:"explicit"`
	UploadedBy   string  `json:"uploadedBy"`
}
