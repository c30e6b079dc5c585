// Package player holds the playback engine: a queue, a cursor and the single
// audio output, driven by user commands and end-of-track events.
package player

import (
	"context"
	"slices"
	"sync"
	"time"

	"LocalFM/core/apperr"
	"LocalFM/core/assets"
	"LocalFM/logger"
	"LocalFM/model"
)

// Catalog is the engine's view of the library.
type Catalog interface {
	Song(id int64) (model.Song, bool)
	RecordPlay(ctx context.Context, songID int64) error
}

// Resolver turns asset ids into handles.
type Resolver interface {
	Resolve(ctx context.Context, id model.AssetID) (*assets.Handle, error)
	Release(h *assets.Handle)
}

const (
	defaultSeekGuardDelay = 300 * time.Millisecond
	defaultPollInterval   = 250 * time.Millisecond
)

// Engine is the playback state machine. All methods are safe for concurrent use.
type Engine struct {
	output   Output
	resolver Resolver
	catalog  Catalog

	seekGuardDelay time.Duration
	pollInterval   time.Duration

	mu        sync.Mutex
	status    Status
	queue     []int64
	index     int
	current   *model.Song
	playing   bool
	volume    float64
	elapsed   float64
	total     float64
	lastErr   string
	audio     *assets.Handle
	cover     *assets.Handle
	gen       uint64 // bumped by every play request
	loadedGen uint64 // gen of the media currently in the output
	seeking   bool
	seekSeq   uint64
	seekTimer *time.Timer

	subs   map[int]chan State
	nextID int

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

type Option func(*Engine)

// WithSeekGuardDelay sets how long position updates stay suppressed after a seek.
func WithSeekGuardDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.seekGuardDelay = d
		}
	}
}

// WithPollInterval sets how often the output position is sampled.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// NewEngine takes ownership of output and starts the position poller.
func NewEngine(output Output, resolver Resolver, catalog Catalog, opts ...Option) *Engine {
	e := &Engine{
		output:         output,
		resolver:       resolver,
		catalog:        catalog,
		seekGuardDelay: defaultSeekGuardDelay,
		pollInterval:   defaultPollInterval,
		status:         StatusIdle,
		queue:          []int64{},
		volume:         1,
		subs:           make(map[int]chan State),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	output.SetEndedHandler(e.handleEnded)
	output.SetErrorHandler(e.handleOutputError)
	go e.poll()
	return e
}

// Play starts songID. A non-nil queue replaces the current one and the cursor
// moves to songID's position in it, or to 0 when songID is not in the queue.
func (e *Engine) Play(ctx context.Context, songID int64, queue []int64) error {
	e.mu.Lock()
	e.gen++
	gen := e.gen
	if queue != nil {
		e.queue = slices.Clone(queue)
		e.index = max(slices.Index(e.queue, songID), 0)
	}
	song, ok := e.catalog.Song(songID)
	if !ok {
		err := apperr.New(apperr.CodeSongNotFound, "song %d not found", songID)
		e.failLocked(err)
		e.mu.Unlock()
		return err
	}
	e.status = StatusLoading
	e.lastErr = ""
	e.publishLocked()
	e.mu.Unlock()

	audio, err := e.resolver.Resolve(ctx, song.AssetID)
	if err != nil {
		return e.abandon(gen, nil, err)
	}
	var cover *assets.Handle
	if !song.CoverAssetID.IsZero() {
		cover, err = e.resolver.Resolve(ctx, song.CoverAssetID)
		if err != nil && !apperr.Is(err, apperr.CodeAssetMissing) {
			logger.Warn("封面查找失败", logger.Int64("songId", songID), logger.ErrorField(err))
		}
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		e.resolver.Release(audio)
		e.resolver.Release(cover)
		return apperr.New(apperr.CodeSuperseded, "play of song %d superseded", songID)
	}

	media := Media{
		Name:        song.AssetID.String(),
		ContentType: audio.ContentType,
		Data:        audio.Bytes(),
		Duration:    song.Duration,
	}
	err = e.output.Load(ctx, media)
	if err == nil {
		_ = e.output.SetVolume(e.volume)
		err = e.output.Play()
	}
	if err != nil {
		e.resolver.Release(audio)
		e.resolver.Release(cover)
		failure := apperr.Wrap(apperr.CodePlaybackFailed, err, "cannot play song %d", songID)
		e.failLocked(failure)
		e.mu.Unlock()
		return failure
	}

	e.releaseLocked()
	e.audio, e.cover = audio, cover
	e.loadedGen = gen
	e.current = &song
	e.status = StatusPlaying
	e.playing = true
	e.elapsed = 0
	e.total = song.Duration
	if e.total <= 0 {
		e.total = e.output.Duration()
	}
	e.publishLocked()
	e.mu.Unlock()

	logger.Info("开始播放", logger.Int64("songId", songID), logger.String("title", song.Title))
	if err := e.catalog.RecordPlay(ctx, songID); err != nil {
		logger.Error("记录播放历史失败", logger.Int64("songId", songID), logger.ErrorField(err))
		return apperr.Wrap(apperr.CodeStorage, err, "song %d is playing but was not recorded", songID)
	}
	return nil
}

// abandon finishes a play whose asset could not be resolved.
func (e *Engine) abandon(gen uint64, h *assets.Handle, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolver.Release(h)
	if gen != e.gen {
		return apperr.New(apperr.CodeSuperseded, "play superseded")
	}
	if apperr.CodeOf(err) == "" {
		err = apperr.Wrap(apperr.CodePlaybackFailed, err, "cannot load audio")
	}
	e.failLocked(err)
	return err
}

// failLocked reports err and drops back to Idle with nothing loaded.
func (e *Engine) failLocked(err error) {
	logger.Warn("播放失败", logger.ErrorField(err))
	if e.current != nil || e.playing {
		_ = e.output.Pause()
	}
	e.releaseLocked()
	e.current = nil
	e.playing = false
	e.elapsed, e.total = 0, 0
	e.lastErr = err.Error()
	e.status = StatusError
	e.publishLocked()
	e.status = StatusIdle
	e.publishLocked()
}

func (e *Engine) releaseLocked() {
	e.resolver.Release(e.audio)
	e.resolver.Release(e.cover)
	e.audio, e.cover = nil, nil
}

// Toggle flips between playing and paused. It does nothing when idle.
func (e *Engine) Toggle() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.status == StatusLoading {
		return nil
	}
	if e.playing {
		if err := e.output.Pause(); err != nil {
			failure := apperr.Wrap(apperr.CodePlaybackFailed, err, "pause failed")
			e.failLocked(failure)
			return failure
		}
		e.elapsed = e.output.Position()
		e.playing = false
		e.status = StatusPaused
	} else {
		if err := e.output.Play(); err != nil {
			failure := apperr.Wrap(apperr.CodePlaybackFailed, err, "resume failed")
			e.failLocked(failure)
			return failure
		}
		e.playing = true
		e.status = StatusPlaying
	}
	e.publishLocked()
	return nil
}

// Next advances the cursor with wraparound and plays. Empty queue: no-op.
func (e *Engine) Next(ctx context.Context) error {
	return e.step(ctx, 1)
}

// Prev moves the cursor back with wraparound and plays. Empty queue: no-op.
func (e *Engine) Prev(ctx context.Context) error {
	return e.step(ctx, -1)
}

func (e *Engine) step(ctx context.Context, delta int) error {
	e.mu.Lock()
	n := len(e.queue)
	if n == 0 {
		e.mu.Unlock()
		return nil
	}
	e.index = ((e.index+delta)%n + n) % n
	songID := e.queue[e.index]
	e.mu.Unlock()
	return e.Play(ctx, songID, nil)
}

// OnEnded handles the end of the current track like Next.
func (e *Engine) OnEnded(ctx context.Context) error {
	e.mu.Lock()
	if e.current != nil {
		e.playing = false
		e.elapsed = e.total
		e.status = StatusEnded
		e.publishLocked()
	}
	e.mu.Unlock()
	return e.Next(ctx)
}

func (e *Engine) handleEnded() {
	e.mu.Lock()
	stale := e.loadedGen != e.gen
	e.mu.Unlock()
	if stale {
		// a newer play is loading; it owns what happens next
		return
	}
	if err := e.OnEnded(context.Background()); err != nil && !apperr.Is(err, apperr.CodeSuperseded) {
		logger.Warn("自动切歌失败", logger.ErrorField(err))
	}
}

// handleOutputError takes a failure the output reported after Play returned
// and drops back to Idle, unless a newer play already replaced that media.
func (e *Engine) handleOutputError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loadedGen != e.gen || e.current == nil {
		return
	}
	e.failLocked(apperr.Wrap(apperr.CodePlaybackFailed, err, "playback of song %d failed", e.current.ID))
}

// Seek jumps to fraction (0..1) of the current track. Position updates from
// the output are ignored until the seek guard delay has passed.
func (e *Engine) Seek(fraction float64) error {
	if fraction < 0 || fraction > 1 {
		return apperr.New(apperr.CodeInvalidArgument, "seek position %v outside 0..1", fraction)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	e.seeking = true
	e.seekSeq++
	seq := e.seekSeq
	if e.seekTimer != nil {
		e.seekTimer.Stop()
	}
	e.seekTimer = time.AfterFunc(e.seekGuardDelay, func() { e.releaseSeek(seq) })

	e.elapsed = fraction * e.total
	if err := e.output.Seek(e.elapsed); err != nil {
		failure := apperr.Wrap(apperr.CodePlaybackFailed, err, "seek failed")
		e.failLocked(failure)
		return failure
	}
	e.publishLocked()
	return nil
}

func (e *Engine) releaseSeek(seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seq != e.seekSeq {
		return
	}
	e.seeking = false
	e.seekTimer = nil
	e.publishLocked()
}

// SetVolume sets the output gain, 0..1.
func (e *Engine) SetVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return apperr.New(apperr.CodeInvalidArgument, "volume %v outside 0..1", volume)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = volume
	if err := e.output.SetVolume(volume); err != nil {
		return apperr.Wrap(apperr.CodePlaybackFailed, err, "set volume failed")
	}
	e.publishLocked()
	return nil
}

// State returns a snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() State {
	s := State{
		Status:  e.status,
		Elapsed: e.elapsed,
		Total:   e.total,
		Playing: e.playing,
		Volume:  e.volume,
		Queue:   slices.Clone(e.queue),
		Index:   e.index,
		Seeking: e.seeking,
		Error:   e.lastErr,
	}
	if e.current != nil {
		s.SongID = e.current.ID
		s.Title = e.current.Title
		s.Artist = e.current.Artist
		s.Genre = e.current.Genre
		s.Language = e.current.Language
		s.Explicit = e.current.Explicit
	}
	if e.cover != nil {
		s.CoverURL = e.cover.URL()
	}
	return s
}

// Subscribe returns a channel of snapshots. Slow readers only see the latest
// one. Call cancel to stop receiving.
func (e *Engine) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	ch <- e.snapshotLocked()
	e.mu.Unlock()

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	}
}

func (e *Engine) publishLocked() {
	if len(e.subs) == 0 {
		return
	}
	s := e.snapshotLocked()
	for _, ch := range e.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

func (e *Engine) poll() {
	defer close(e.done)
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.mu.Lock()
			if e.playing && !e.seeking {
				e.elapsed = e.output.Position()
				e.publishLocked()
			}
			e.mu.Unlock()
		}
	}
}

// Close stops the poller, releases handles and closes the output.
func (e *Engine) Close() error {
	var err error
	e.once.Do(func() {
		close(e.stop)
		<-e.done
		e.mu.Lock()
		defer e.mu.Unlock()
		e.gen++
		if e.seekTimer != nil {
			e.seekTimer.Stop()
		}
		e.releaseLocked()
		e.current = nil
		e.playing = false
		e.status = StatusIdle
		err = e.output.Close()
		for id, ch := range e.subs {
			delete(e.subs, id)
			close(ch)
		}
	})
	return err
}
