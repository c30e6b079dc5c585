// Package upload validates and normalises incoming audio and cover files
// before the library registers them, and imports file pairs dropped into an
// inbox directory.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"LocalFM/core/apperr"
	"LocalFM/core/audio"
	"LocalFM/logger"
	"LocalFM/storage"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/dhowden/tag"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// MinCoverSize is the smallest accepted cover edge in pixels.
	MinCoverSize = 1000
	// CoverSize is the edge of stored covers.
	CoverSize = 1200
)

// Request is a raw upload.
type Request struct {
	Title    string
	Artist   string
	Album    string
	Genre    string
	Language string
	Explicit bool
	Year     int
	Audio    []byte
	Cover    []byte
	Filename string // audio file name; its stem is the title of last resort
}

// Prepared is a validated upload ready for registration.
type Prepared struct {
	Title       string
	Artist      string
	Album       string
	Genre       string
	Language    string
	Explicit    bool
	Year        int
	Duration    float64
	Audio       storage.Blob
	Cover       storage.Blob
	AccentColor string
}

// Processor turns Requests into Prepared uploads.
type Processor struct {
	prober audio.Prober
}

func NewProcessor(prober audio.Prober) *Processor {
	return &Processor{prober: prober}
}

// Prepare validates both files. Tag values from the audio fill request
// fields left empty.
func (p *Processor) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	audioBlob, err := checkAudio(req.Audio)
	if err != nil {
		return nil, err
	}
	cover, accent, err := p.PrepareCover(req.Cover)
	if err != nil {
		return nil, err
	}

	out := &Prepared{
		Title:       req.Title,
		Artist:      req.Artist,
		Album:       req.Album,
		Genre:       req.Genre,
		Language:    req.Language,
		Explicit:    req.Explicit,
		Year:        req.Year,
		Audio:       audioBlob,
		Cover:       cover,
		AccentColor: accent,
	}
	applyTags(out, req.Audio)
	if out.Title == "" && req.Filename != "" {
		out.Title = strings.TrimSuffix(filepath.Base(req.Filename), filepath.Ext(req.Filename))
	}

	if p.prober != nil {
		d, err := p.prober.Duration(ctx, req.Audio)
		if err != nil {
			logger.Warn("无法获取音频时长", logger.ErrorField(err))
		} else {
			out.Duration = d
		}
	}
	return out, nil
}

func checkAudio(data []byte) (storage.Blob, error) {
	if len(data) == 0 {
		return storage.Blob{}, apperr.New(apperr.CodeInvalidArgument, "audio file is empty")
	}
	mt := mimetype.Detect(data)
	ct := mt.String()
	if !strings.HasPrefix(ct, "audio/") && !mt.Is("application/ogg") {
		return storage.Blob{}, apperr.New(apperr.CodeInvalidArgument, "unsupported audio type %s", ct)
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return storage.Blob{Data: data, ContentType: ct}, nil
}

// PrepareCover rejects covers under MinCoverSize on either edge and returns
// a CoverSize square JPEG plus its dominant colour.
func (p *Processor) PrepareCover(data []byte) (storage.Blob, string, error) {
	if len(data) == 0 {
		return storage.Blob{}, "", apperr.New(apperr.CodeInvalidArgument, "cover image is empty")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return storage.Blob{}, "", apperr.Wrap(apperr.CodeInvalidArgument, err, "cannot decode cover image")
	}
	b := img.Bounds()
	if b.Dx() < MinCoverSize || b.Dy() < MinCoverSize {
		return storage.Blob{}, "", apperr.New(apperr.CodeCoverTooSmall,
			"cover is %dx%d, need at least %dx%d", b.Dx(), b.Dy(), MinCoverSize, MinCoverSize)
	}

	square := imaging.Fill(img, CoverSize, CoverSize, imaging.Center, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, square, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return storage.Blob{}, "", fmt.Errorf("failed to encode cover: %w", err)
	}

	accent, err := AccentColor(square)
	if err != nil {
		logger.Debug("无法提取主色调", logger.ErrorField(err))
	}
	return storage.Blob{Data: buf.Bytes(), ContentType: "image/jpeg"}, accent, nil
}

// AccentColor returns the dominant colour of img as "#rrggbb".
func AccentColor(img image.Image) (string, error) {
	small := imaging.Resize(img, 160, 0, imaging.Box)
	colors, err := prominentcolor.KmeansWithArgs(prominentcolor.ArgumentNoCropping, small)
	if err != nil {
		return "", fmt.Errorf("使用 prominentcolor (K-Means) 提取主色调失败: %w", err)
	}
	if len(colors) == 0 {
		return "", fmt.Errorf("prominentcolor (K-Means) 未能找到任何主色调")
	}
	c := colors[0].Color
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), nil
}

// applyTags fills empty fields from embedded tags. Missing tags are not an error.
func applyTags(out *Prepared, data []byte) {
	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return
	}
	if out.Title == "" {
		out.Title = strings.TrimSpace(m.Title())
	}
	if out.Artist == "" {
		out.Artist = strings.TrimSpace(m.Artist())
	}
	if out.Album == "" {
		out.Album = strings.TrimSpace(m.Album())
	}
	if out.Genre == "" {
		out.Genre = strings.TrimSpace(m.Genre())
	}
	if out.Year == 0 {
		out.Year = m.Year()
	}
}

// AvatarSize is the edge of stored profile images.
const AvatarSize = 400

// PrepareAvatar crops any decodable image to an AvatarSize square JPEG.
func (p *Processor) PrepareAvatar(data []byte) (storage.Blob, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return storage.Blob{}, apperr.Wrap(apperr.CodeInvalidArgument, err, "cannot decode image")
	}
	square := imaging.Fill(img, AvatarSize, AvatarSize, imaging.Center, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, square, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return storage.Blob{}, fmt.Errorf("failed to encode image: %w", err)
	}
	return storage.Blob{Data: buf.Bytes(), ContentType: "image/jpeg"}, nil
}
