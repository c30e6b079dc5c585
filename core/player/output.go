package player

import "context"

// Media is a loaded audio source.
type Media struct {
	Name        string // asset id, for logs
	ContentType string
	Data        []byte
	Duration    float64 // seconds, 0 when unknown
}

// Output is the hardware audio sink. The engine is its only user.
//
// The ended handler fires at most once per Load, when the loaded media
// finishes on its own; it is never called for media replaced by a later Load.
// The error handler fires instead of the ended handler when the device or
// player process fails after Play returned, and is likewise dropped for
// replaced media.
type Output interface {
	Load(ctx context.Context, media Media) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(volume float64) error
	Position() float64
	Duration() float64
	SetEndedHandler(fn func())
	SetErrorHandler(fn func(error))
	Close() error
}
