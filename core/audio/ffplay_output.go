package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"LocalFM/core/player"
	"LocalFM/logger"

	"github.com/gabriel-vasile/mimetype"
)

var errNothingLoaded = errors.New("no media loaded")

// FFplayOutput plays through an ffplay child process. Pausing stops the
// process with SIGSTOP; seeking and volume changes restart it at the
// current offset.
type FFplayOutput struct {
	ffplayPath string
	tempDir    string

	mu        sync.Mutex
	file      string
	duration  float64
	offset    float64
	startedAt time.Time
	playing   bool
	volume    float64
	cmd       *exec.Cmd
	stopped   bool // process is SIGSTOPped
	gen       uint64
	onEnded   func()
	onError   func(error)
}

// NewFFplayOutput creates an output. ffmpegPath names the ffmpeg binary;
// ffplay is expected next to it.
func NewFFplayOutput(ffmpegPath, tempDir string) *FFplayOutput {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFplayOutput{
		ffplayPath: strings.Replace(ffmpegPath, "ffmpeg", "ffplay", 1),
		tempDir:    tempDir,
		volume:     1,
	}
}

func (o *FFplayOutput) SetEndedHandler(fn func()) {
	o.mu.Lock()
	o.onEnded = fn
	o.mu.Unlock()
}

func (o *FFplayOutput) SetErrorHandler(fn func(error)) {
	o.mu.Lock()
	o.onError = fn
	o.mu.Unlock()
}

// Load stages the media in a temp file; ffplay needs a seekable input.
func (o *FFplayOutput) Load(ctx context.Context, media player.Media) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.tempDir != "" {
		if err := os.MkdirAll(o.tempDir, 0o750); err != nil {
			return fmt.Errorf("failed to create playback dir: %w", err)
		}
	}
	ext := mimetype.Detect(media.Data).Extension()
	tmp, err := os.CreateTemp(o.tempDir, "localfm-play-*"+ext)
	if err != nil {
		return fmt.Errorf("failed to stage media: %w", err)
	}
	if _, err := tmp.Write(media.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to stage media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.killLocked()
	o.removeFileLocked()
	o.gen++
	o.file = tmp.Name()
	o.duration = media.Duration
	if o.duration <= 0 {
		if d, err := WAVDuration(media.Data); err == nil {
			o.duration = d
		}
	}
	o.offset = 0
	o.playing = false
	logger.Debug("ffplay 媒体已暂存", logger.String("media", media.Name), logger.String("file", filepath.Base(o.file)))
	return nil
}

func (o *FFplayOutput) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.file == "" {
		return errNothingLoaded
	}
	if o.playing {
		return nil
	}
	if o.cmd != nil && o.stopped {
		if err := o.cmd.Process.Signal(syscall.SIGCONT); err != nil {
			return fmt.Errorf("failed to resume ffplay: %w", err)
		}
		o.stopped = false
		o.playing = true
		o.startedAt = time.Now()
		return nil
	}
	if o.duration > 0 && o.offset >= o.duration {
		o.offset = 0
	}
	return o.startLocked()
}

func (o *FFplayOutput) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.playing || o.cmd == nil {
		return nil
	}
	if err := o.cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("failed to pause ffplay: %w", err)
	}
	o.offset = o.positionLocked()
	o.stopped = true
	o.playing = false
	return nil
}

func (o *FFplayOutput) Seek(seconds float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.file == "" {
		return errNothingLoaded
	}
	o.offset = clampPosition(seconds, o.duration)
	if !o.playing {
		// resume from the new offset on the next Play
		o.killLocked()
		return nil
	}
	o.killLocked()
	return o.startLocked()
}

func (o *FFplayOutput) SetVolume(volume float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = volume
	if !o.playing {
		return nil
	}
	o.offset = o.positionLocked()
	o.killLocked()
	return o.startLocked()
}

func (o *FFplayOutput) Position() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.positionLocked()
}

func (o *FFplayOutput) Duration() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.duration
}

func (o *FFplayOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gen++
	o.killLocked()
	o.removeFileLocked()
	return nil
}

func (o *FFplayOutput) positionLocked() float64 {
	if !o.playing {
		return o.offset
	}
	return clampPosition(o.offset+time.Since(o.startedAt).Seconds(), o.duration)
}

func (o *FFplayOutput) startLocked() error {
	args := []string{
		"-nodisp", "-autoexit",
		"-loglevel", "error",
		"-volume", strconv.Itoa(int(o.volume * 100)),
	}
	if o.offset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(o.offset, 'f', 3, 64))
	}
	args = append(args, o.file)

	cmd := exec.Command(o.ffplayPath, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffplay: %w", err)
	}
	o.gen++
	gen := o.gen
	o.cmd = cmd
	o.stopped = false
	o.playing = true
	o.startedAt = time.Now()
	logger.Debug("ffplay 已启动", logger.Float64("offset", o.offset), logger.Int("pid", cmd.Process.Pid))

	go o.wait(cmd, gen)
	return nil
}

// wait reaps the process and reports how the current media finished: the
// ended handler on a clean exit, the error handler otherwise.
func (o *FFplayOutput) wait(cmd *exec.Cmd, gen uint64) {
	err := cmd.Wait()
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return
	}
	if err != nil {
		// 必须在 playing 置为 false 之前读取位置
		o.offset = o.positionLocked()
	} else {
		o.offset = o.duration
	}
	o.cmd = nil
	o.playing = false
	onEnded, onError := o.onEnded, o.onError
	o.mu.Unlock()

	if err != nil {
		logger.Warn("ffplay 异常退出", logger.ErrorField(err))
		if onError != nil {
			onError(fmt.Errorf("ffplay exited: %w", err))
		}
		return
	}
	if onEnded != nil {
		onEnded()
	}
}

func (o *FFplayOutput) killLocked() {
	if o.cmd == nil {
		return
	}
	// bump first so the waiter ignores this exit
	o.gen++
	if o.stopped {
		_ = o.cmd.Process.Signal(syscall.SIGCONT)
	}
	_ = o.cmd.Process.Kill()
	o.cmd = nil
	o.stopped = false
	o.playing = false
}

func (o *FFplayOutput) removeFileLocked() {
	if o.file != "" {
		_ = os.Remove(o.file)
		o.file = ""
	}
}
