package audio

import "context"

// Prober reports the length of an audio payload in seconds.
type Prober interface {
	Duration(ctx context.Context, data []byte) (float64, error)
}
