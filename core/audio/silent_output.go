package audio

import (
	"context"
	"sync"
	"time"

	"LocalFM/core/player"
)

// SilentOutput plays nothing but keeps a wall-clock position and reports the
// end of each track, so the engine behaves the same without a sound device.
type SilentOutput struct {
	mu        sync.Mutex
	loaded    bool
	duration  float64
	offset    float64 // position when last started or paused
	startedAt time.Time
	playing   bool
	volume    float64
	gen       uint64
	timer     *time.Timer
	onEnded   func()
}

func NewSilentOutput() *SilentOutput {
	return &SilentOutput{volume: 1}
}

func (o *SilentOutput) SetEndedHandler(fn func()) {
	o.mu.Lock()
	o.onEnded = fn
	o.mu.Unlock()
}

// SetErrorHandler is a no-op: there is no device that could fail.
func (o *SilentOutput) SetErrorHandler(func(error)) {}

func (o *SilentOutput) Load(ctx context.Context, media player.Media) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopTimerLocked()
	o.gen++
	o.loaded = true
	o.duration = media.Duration
	if o.duration <= 0 {
		if d, err := WAVDuration(media.Data); err == nil {
			o.duration = d
		}
	}
	o.offset = 0
	o.playing = false
	return nil
}

func (o *SilentOutput) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.loaded {
		return errNothingLoaded
	}
	if o.playing {
		return nil
	}
	if o.duration > 0 && o.offset >= o.duration {
		o.offset = 0
	}
	o.playing = true
	o.startedAt = time.Now()
	o.armLocked()
	return nil
}

func (o *SilentOutput) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.playing {
		return nil
	}
	o.offset = o.positionLocked()
	o.playing = false
	o.stopTimerLocked()
	return nil
}

func (o *SilentOutput) Seek(seconds float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.loaded {
		return errNothingLoaded
	}
	o.offset = clampPosition(seconds, o.duration)
	if o.playing {
		o.startedAt = time.Now()
		o.armLocked()
	}
	return nil
}

func (o *SilentOutput) SetVolume(volume float64) error {
	o.mu.Lock()
	o.volume = volume
	o.mu.Unlock()
	return nil
}

// Volume is the last gain set.
func (o *SilentOutput) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

func (o *SilentOutput) Position() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.positionLocked()
}

func (o *SilentOutput) Duration() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.duration
}

func (o *SilentOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopTimerLocked()
	o.gen++
	o.loaded = false
	o.playing = false
	return nil
}

func (o *SilentOutput) positionLocked() float64 {
	if !o.playing {
		return o.offset
	}
	return clampPosition(o.offset+time.Since(o.startedAt).Seconds(), o.duration)
}

func (o *SilentOutput) armLocked() {
	o.stopTimerLocked()
	if o.duration <= 0 {
		return
	}
	gen := o.gen
	remaining := time.Duration((o.duration - o.offset) * float64(time.Second))
	o.timer = time.AfterFunc(remaining, func() { o.finish(gen) })
}

func (o *SilentOutput) stopTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *SilentOutput) finish(gen uint64) {
	o.mu.Lock()
	if gen != o.gen || !o.playing {
		o.mu.Unlock()
		return
	}
	o.playing = false
	o.offset = o.duration
	o.timer = nil
	// Later Loads must not be reported as ended by this timer.
	o.gen++
	fn := o.onEnded
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func clampPosition(pos, duration float64) float64 {
	if pos < 0 {
		return 0
	}
	if duration > 0 && pos > duration {
		return duration
	}
	return pos
}
