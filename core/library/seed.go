package library

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"LocalFM/core/audio"
	"LocalFM/core/upload"
	"LocalFM/logger"
	"LocalFM/repository"
)

type sample struct {
	title, artist, album, genre, language string
	freq                                  float64
	from, to                              color.NRGBA
	explicit                              bool
}

var samples = []sample{
	{"Morning Drone", "localfm", "Test Tones", "ambient", "instrumental", 220, color.NRGBA{0x1d, 0x35, 0x57, 0xff}, color.NRGBA{0xe6, 0x39, 0x46, 0xff}, false},
	{"Concert A", "localfm", "Test Tones", "ambient", "instrumental", 440, color.NRGBA{0x26, 0x46, 0x53, 0xff}, color.NRGBA{0xe9, 0xc4, 0x6a, 0xff}, false},
	{"High Whistle", "localfm", "Test Tones", "experimental", "instrumental", 880, color.NRGBA{0x2a, 0x9d, 0x8f, 0xff}, color.NRGBA{0xf4, 0xa2, 0x61, 0xff}, false},
	{"Low Hum", "admin", "Basement", "drone", "instrumental", 110, color.NRGBA{0x10, 0x10, 0x30, 0xff}, color.NRGBA{0x60, 0x50, 0xd0, 0xff}, true},
}

// SampleSeconds is the length of each generated sample track.
const SampleSeconds = 8

// SeedSamples registers generated sample songs through the upload path. It
// does nothing when the library already has songs.
func (l *Library) SeedSamples(ctx context.Context) (int, error) {
	l.mu.Lock()
	existing := len(l.doc.Songs)
	l.mu.Unlock()
	if existing > 0 {
		return 0, nil
	}

	n := 0
	for _, s := range samples {
		cover, err := gradientPNG(upload.CoverSize, s.from, s.to)
		if err != nil {
			return n, err
		}
		prepared, err := l.processor.Prepare(ctx, upload.Request{
			Title:    s.title,
			Artist:   s.artist,
			Album:    s.album,
			Genre:    s.genre,
			Language: s.language,
			Explicit: s.explicit,
			Audio:    audio.SineWAV(s.freq, SampleSeconds, 22050),
			Cover:    cover,
		})
		if err != nil {
			return n, fmt.Errorf("prepare sample %q: %w", s.title, err)
		}
		if _, err := l.register(ctx, prepared, repository.AdminUsername); err != nil {
			return n, err
		}
		n++
	}
	logger.Info("示例歌曲已写入", logger.Int("count", n))
	return n, nil
}

// gradientPNG draws a diagonal two-colour gradient.
func gradientPNG(size int, from, to color.NRGBA) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	lerp := func(a, b uint8, t float64) uint8 { return uint8(float64(a) + (float64(b)-float64(a))*t) }
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			t := float64(x+y) / float64(2*(size-1))
			img.SetNRGBA(x, y, color.NRGBA{lerp(from.R, to.R, t), lerp(from.G, to.G, t), lerp(from.B, to.B, t), 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
