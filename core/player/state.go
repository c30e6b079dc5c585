package player

// Status is the engine's playback state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
	StatusEnded   Status = "ended"
	StatusError   Status = "error"
)

// State is a snapshot of what a UI shows for the player.
type State struct {
	Status   Status  `json:"status"`
	SongID   int64   `json:"songId,omitempty"`
	Title    string  `json:"title,omitempty"`
	Artist   string  `json:"artist,omitempty"`
	CoverURL string  `json:"coverUrl"` // empty means placeholder
	Genre    string  `json:"genre,omitempty"`
	Language string  `json:"language,omitempty"`
	Explicit bool    `json:"explicit"`
	Elapsed  float64 `json:"elapsed"`
	Total    float64 `json:"total"`
	Playing  bool    `json:"playing"`
	Volume   float64 `json:"volume"`
	Queue    []int64 `json:"queue"`
	Index    int     `json:"index"`
	Seeking  bool    `json:"seeking"`
	Error    string  `json:"error,omitempty"`
}

// Fraction is Elapsed/Total, or 0 when the length is unknown.
func (s State) Fraction() float64 {
	if s.Total <= 0 {
		return 0
	}
	return s.Elapsed / s.Total
}
