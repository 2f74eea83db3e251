package encoder

import (
	"context"
	"errors"
	"fmt"
	"go/version"
	"image"
	"io"
	"os"
	"runtime"
	"strings"

	"webp-renditions/internal/logging"

	// Decoders used by imaging.Open
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/avif"
	webpenc "github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// errUnsupportedSource marks a source MIME type the software decoder has no
// decode function for.
var errUnsupportedSource = errors.New("unsupported source type")

// Software decodes with Go image decoders, resizes with bilinear
// resampling and encodes with libwebp bindings or the AVIF encoder.
type Software struct {
	settings  Settings
	goVersion func() string
}

// NewSoftware creates the software raster backend.
func NewSoftware(s Settings) *Software {
	return &Software{settings: s, goVersion: runtime.Version}
}

// Name implements Backend.
func (s *Software) Name() string { return "software" }

// Available reports whether codec has a software encoder and the running Go
// version meets the configured minimum.
func (s *Software) Available(codec Codec) bool {
	switch codec {
	case CodecWebP, CodecAVIF:
	default:
		return false
	}
	return runtimeAtLeast(s.goVersion(), s.settings.MinGo)
}

// runtimeAtLeast compares Go version strings. Development builds and
// toolchains with experiment suffixes do not parse and are accepted.
func runtimeAtLeast(running, minimum string) bool {
	if minimum == "" || !version.IsValid(minimum) {
		return true
	}
	if !version.IsValid(running) {
		return true
	}
	return version.Compare(running, minimum) >= 0
}

// Transcode implements Backend.
func (s *Software) Transcode(ctx context.Context, req Request) (bool, error) {
	if !s.Available(req.Codec) {
		return false, nil
	}

	src, err := decodeSource(req.Source, req.MimeType)
	if errors.Is(err, errUnsupportedSource) {
		logging.Debug("Software backend cannot decode %s (%s)", req.Source, req.MimeType)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	// Palette and gray sources become true colour; alpha is kept
	canvas := imaging.Clone(src)

	var out image.Image = canvas
	if req.Resizes() {
		out = resizeBilinear(canvas, req.Width)
	}

	f, err := os.Create(req.Dest)
	if err != nil {
		return false, fmt.Errorf("failed to create %s: %w", req.Dest, err)
	}

	if err := s.encode(f, out, req.Codec); err != nil {
		f.Close()
		return false, err
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("failed to close %s: %w", req.Dest, err)
	}
	return true, nil
}

func decodeSource(path, mimeType string) (image.Image, error) {
	switch strings.ToLower(mimeType) {
	case "", "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
	default:
		return nil, errUnsupportedSource
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// resizeBilinear scales src to width, deriving the height from the aspect ratio.
func resizeBilinear(src *image.NRGBA, width int) *image.NRGBA {
	b := src.Bounds()
	height := ResizeHeight(width, b.Dx(), b.Dy())

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func (s *Software) encode(w io.Writer, img image.Image, codec Codec) error {
	switch codec {
	case CodecWebP:
		options, err := webpenc.NewLossyEncoderOptions(webpenc.PresetDefault, float32(s.settings.WebP.Quality))
		if err != nil {
			return fmt.Errorf("error creating webp encoder options: %w", err)
		}
		options.Method = 6
		if err := webp.Encode(w, img, options); err != nil {
			return fmt.Errorf("webp encode failed: %w", err)
		}
	case CodecAVIF:
		opts := avif.Options{
			Quality:      s.settings.AVIF.Quality,
			QualityAlpha: s.settings.AVIF.Quality,
			Speed:        s.settings.AVIF.Speed,
		}
		if err := avif.Encode(w, img, opts); err != nil {
			return fmt.Errorf("avif encode failed: %w", err)
		}
	default:
		return fmt.Errorf("no software encoder for %s", codec)
	}
	return nil
}
