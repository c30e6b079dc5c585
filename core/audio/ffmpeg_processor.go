package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"LocalFM/logger"
)

// FFprobe implements Prober with ffprobe. WAV payloads are measured from
// their header without spawning a process.
type FFprobe struct {
	ffmpegPath string
}

// NewFFprobe creates a prober. ffmpegPath names the ffmpeg binary; ffprobe is
// expected next to it.
func NewFFprobe(ffmpegPath string) *FFprobe {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFprobe{ffmpegPath: ffmpegPath}
}

func (p *FFprobe) ffprobePath() string {
	return strings.Replace(p.ffmpegPath, "ffmpeg", "ffprobe", 1)
}

// Duration writes data to a temp file and asks ffprobe for its length.
func (p *FFprobe) Duration(ctx context.Context, data []byte) (float64, error) {
	if d, err := WAVDuration(data); err == nil {
		return d, nil
	}

	tmp, err := os.CreateTemp("", "localfm-probe-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create probe file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("failed to write probe file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	return p.DurationFile(ctx, tmp.Name())
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecName string `json:"codec_name"`
	} `json:"streams"`
}

func (p *FFprobe) run(ctx context.Context, inputFile string, entries string) (*ffprobeOutput, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", entries,
		"-of", "json",
		inputFile,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath(), args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ffprobe output for %s: %w\nFFprobe Output: %s", inputFile, err, out.String())
	}
	return &probeData, nil
}

// DurationFile uses ffprobe to get the duration of an audio file in seconds.
func (p *FFprobe) DurationFile(ctx context.Context, inputFile string) (float64, error) {
	probeData, err := p.run(ctx, inputFile, "format=duration")
	if err != nil {
		return 0, err
	}
	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output for %s", inputFile)
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration string \"%s\" for %s: %w", probeData.Format.Duration, inputFile, err)
	}
	logger.Debug("ffprobe 时长", logger.String("file", inputFile), logger.Float64("seconds", duration))
	return duration, nil
}

// Codec 获取音频文件的格式
func (p *FFprobe) Codec(ctx context.Context, inputFile string) (string, error) {
	probeData, err := p.run(ctx, inputFile, "stream=codec_name")
	if err != nil {
		return "", err
	}
	if len(probeData.Streams) == 0 {
		return "", fmt.Errorf("no audio streams found in file")
	}
	return probeData.Streams[0].CodecName, nil
}
