package transform

import (
	"slices"
	"strings"

	"webp-renditions/internal/encoder"
)

// DefaultSupportedMimes lists the source types every built-in format accepts.
var DefaultSupportedMimes = []string{"image/jpeg", "image/jpg", "image/png"}

// Format describes one rendition format. Formats are built once and never
// mutated afterwards.
type Format struct {
	// Key is the name used in configuration and job parameters.
	Key string
	// DirName is the per-format directory inside each zone.
	DirName   string
	Extension string
	MimeType  string
	Codec     encoder.Codec

	SupportedMimes []string
	// Backends are tried in order.
	Backends []encoder.Backend
}

// Supports reports whether mimeType is an accepted source type.
func (f *Format) Supports(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return slices.Contains(f.SupportedMimes, mimeType)
}

// ChangeExtension swaps the extension of p for this format's extension.
func (f *Format) ChangeExtension(p string) string {
	return ChangeExtension(p, f.Extension)
}

// FullPath returns the public zone path of the full size rendition of rel.
func (f *Format) FullPath(rel string) string {
	return DeriveFullPath(rel, f.DirName, f.Extension)
}

// ThumbPath returns the thumb zone path of the width rendition of name.
func (f *Format) ThumbPath(name, hashPath string, width int) string {
	return DeriveThumbPath(name, hashPath, width, f.DirName, f.Extension)
}

// WebP returns the WebP format using backends.
func WebP(backends []encoder.Backend) *Format {
	return &Format{
		Key:            "webp",
		DirName:        "webp",
		Extension:      "webp",
		MimeType:       "image/webp",
		Codec:          encoder.CodecWebP,
		SupportedMimes: slices.Clone(DefaultSupportedMimes),
		Backends:       backends,
	}
}

// AVIF returns the AVIF format using backends.
func AVIF(backends []encoder.Backend) *Format {
	return &Format{
		Key:            "avif",
		DirName:        "avif",
		Extension:      "avif",
		MimeType:       "image/avif",
		Codec:          encoder.CodecAVIF,
		SupportedMimes: slices.Clone(DefaultSupportedMimes),
		Backends:       backends,
	}
}
