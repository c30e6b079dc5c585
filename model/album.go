package model

// Album 表示一张专辑. Tracks only ever grows.
type Album struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Artist       string  `json:"artist"`
	Year         int     `json:"year"`
	CoverAssetID AssetID `json:"coverAssetId"`
	AccentColor  string  `json:"accentColor,omitempty"` // "#rrggbb" taken from the cover
	Tracks       []int64 `json:"tracks"`
}
