package encoder

import (
	"context"
	"math"
)

// Codec identifies an output image encoding.
type Codec string

const (
	// CodecWebP is the WebP encoding.
	CodecWebP Codec = "webp"
	// CodecAVIF is the AVIF encoding.
	CodecAVIF Codec = "avif"
)

// Request describes a single transcode attempt.
type Request struct {
	// Source is a local readable path of the original image.
	Source string
	// Dest is the local path the encoded rendition is written to.
	Dest string
	// Width is the target width in pixels. Width <= 0 keeps the original size.
	Width int
	// Codec is the output encoding.
	Codec Codec
	// MimeType is the source MIME type, used by decoders that dispatch on it.
	MimeType string
}

// Resizes reports whether the request asks for a resize.
func (r Request) Resizes() bool {
	return r.Width > 0
}

// Backend is one transcoding strategy.
//
// Transcode returns false with a nil error when the backend cannot serve the
// request in the current environment (missing binary, unsupported codec or
// option). A non-nil error means an attempted transcode failed.
type Backend interface {
	Name() string
	Available(codec Codec) bool
	Transcode(ctx context.Context, req Request) (bool, error)
}

// ResizeHeight returns the height that keeps the source aspect ratio for the
// given target width. A width <= 0, or an unknown source size, returns the
// source height unchanged.
func ResizeHeight(width, srcWidth, srcHeight int) int {
	if width <= 0 || srcWidth <= 0 || srcHeight <= 0 {
		return srcHeight
	}

	ratio := float64(srcWidth) / float64(srcHeight)
	height := int(math.Round(float64(width) / ratio))
	if height < 1 {
		height = 1
	}
	return height
}
