package encoder

import (
	"slices"
	"strings"
)

// WebPSettings holds the WebP encoder options shared by all backends.
type WebPSettings struct {
	Quality        int  `mapstructure:"quality" yaml:"quality" default:"75" validate:"min=0,max=100"`
	FilterStrength int  `mapstructure:"filter_strength" yaml:"filter_strength" default:"80" validate:"min=0,max=100"`
	AutoFilter     bool `mapstructure:"auto_filter" yaml:"auto_filter" default:"true"`
}

// AVIFSettings holds the AVIF encoder options shared by all backends.
type AVIFSettings struct {
	Quality int `mapstructure:"quality" yaml:"quality" default:"60" validate:"min=0,max=100"`
	Speed   int `mapstructure:"speed" yaml:"speed" default:"6" validate:"min=0,max=10"`
}

// Settings configures the encoder backends.
type Settings struct {
	WebP WebPSettings `mapstructure:"webp" yaml:"webp"`
	AVIF AVIFSettings `mapstructure:"avif" yaml:"avif"`

	CWebPPath   string `mapstructure:"cwebp_path" yaml:"cwebp_path" default:"cwebp"`
	AvifencPath string `mapstructure:"avifenc_path" yaml:"avifenc_path" default:"avifenc"`

	// MinVips is the lowest libvips version (major.minor) the library
	// backend accepts.
	MinVips string `mapstructure:"min_vips" yaml:"min_vips" default:"8.10"`
	// MinGo is the lowest Go runtime the software backend accepts.
	MinGo string `mapstructure:"min_go" yaml:"min_go" default:"go1.21"`

	// Disable lists backend names ("cli", "vips", "software") to leave out.
	Disable []string `mapstructure:"disable" yaml:"disable"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		WebP:        WebPSettings{Quality: 75, FilterStrength: 80, AutoFilter: true},
		AVIF:        AVIFSettings{Quality: 60, Speed: 6},
		CWebPPath:   "cwebp",
		AvifencPath: "avifenc",
		MinVips:     "8.10",
		MinGo:       "go1.21",
	}
}

// Quality returns the configured quality for a codec.
func (s Settings) Quality(codec Codec) int {
	if codec == CodecAVIF {
		return s.AVIF.Quality
	}
	return s.WebP.Quality
}

// Disabled reports whether the backend called name is listed in Disable.
func (s Settings) Disabled(name string) bool {
	return slices.ContainsFunc(s.Disable, func(d string) bool {
		return strings.EqualFold(strings.TrimSpace(d), name)
	})
}

// Chain builds the default backend order: external CLI encoder, libvips,
// then the pure software path. Disabled backends are skipped.
func Chain(s Settings) []Backend {
	all := []Backend{
		NewCLI(s),
		NewVips(s),
		NewSoftware(s),
	}

	chain := make([]Backend, 0, len(all))
	for _, b := range all {
		if s.Disabled(b.Name()) {
			continue
		}
		chain = append(chain, b)
	}
	return chain
}
