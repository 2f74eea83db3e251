package encoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"webp-renditions/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library
// This should be called once at startup
func InitVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return
	}

	// Configure vips logging BEFORE Startup() so LOG_LEVEL is respected
	vipsLogLevel, logHandler := vipsLogging(logging.GetLevel())
	vips.LoggingSettings(logHandler, vipsLogLevel)

	// One operation at a time per worker; the job runner provides parallelism
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
}

func vipsLogging(level logging.LogLevel) (vips.LogLevel, func(string, vips.LogLevel, string)) {
	forward := func(domain string, lvl vips.LogLevel, msg string) {
		switch lvl {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}

	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo, forward
	case logging.LevelInfo:
		return vips.LogLevelWarning, forward
	case logging.LevelWarn:
		return vips.LogLevelError, forward
	default:
		return vips.LogLevelCritical, forward
	}
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// Vips encodes through libvips.
type Vips struct {
	settings Settings
}

// NewVips creates the libvips backend. InitVips must have been called for it
// to report itself available.
func NewVips(s Settings) *Vips {
	return &Vips{settings: s}
}

// Name implements Backend.
func (v *Vips) Name() string { return "vips" }

func vipsImageType(codec Codec) (vips.ImageType, bool) {
	switch codec {
	case CodecWebP:
		return vips.ImageTypeWEBP, true
	case CodecAVIF:
		return vips.ImageTypeAVIF, true
	default:
		return vips.ImageTypeUnknown, false
	}
}

// Available reports whether libvips is running, was built with a saver for
// codec, and meets the configured minimum version.
func (v *Vips) Available(codec Codec) bool {
	if !IsVipsAvailable() {
		return false
	}

	imageType, ok := vipsImageType(codec)
	if !ok || !vips.IsTypeSupported(imageType) {
		return false
	}

	return versionAtLeast(vips.MajorVersion, vips.MinorVersion, v.settings.MinVips)
}

// versionAtLeast compares major.minor against a "major.minor" minimum. An
// empty or malformed minimum accepts any version.
func versionAtLeast(major, minor int, minimum string) bool {
	parts := strings.SplitN(strings.TrimSpace(minimum), ".", 3)
	if len(parts) < 2 {
		return true
	}
	wantMajor, err1 := strconv.Atoi(parts[0])
	wantMinor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return true
	}

	if major != wantMajor {
		return major > wantMajor
	}
	return minor >= wantMinor
}

// Transcode implements Backend.
func (v *Vips) Transcode(ctx context.Context, req Request) (bool, error) {
	if !v.Available(req.Codec) {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ref, err := vips.LoadImageFromFile(req.Source, vips.NewImportParams())
	if err != nil {
		return false, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	// Orientation lives in EXIF, which is stripped below
	if err := ref.AutoRotate(); err != nil {
		return false, fmt.Errorf("vips auto-rotate failed: %w", err)
	}

	if err := ref.ToColorSpace(vips.InterpretationSRGB); err != nil {
		return false, fmt.Errorf("vips colorspace conversion failed: %w", err)
	}

	// RGBA output like the software backend; existing transparency is kept
	if !ref.HasAlpha() {
		if err := ref.AddAlpha(); err != nil {
			return false, fmt.Errorf("vips alpha conversion failed: %w", err)
		}
	}

	// Drops EXIF/XMP but keeps the ICC profile
	if err := ref.RemoveMetadata(); err != nil {
		return false, fmt.Errorf("vips metadata strip failed: %w", err)
	}

	if req.Resizes() {
		srcW, srcH := ref.Width(), ref.Height()
		height := ResizeHeight(req.Width, srcW, srcH)

		logging.Debug("Vips resizing %s: %dx%d -> %dx%d", filepath.Base(req.Source), srcW, srcH, req.Width, height)

		hScale := float64(req.Width) / float64(srcW)
		vScale := float64(height) / float64(srcH)
		if err := ref.ResizeWithVScale(hScale, vScale, vips.KernelCubic); err != nil {
			return false, fmt.Errorf("vips resize failed: %w", err)
		}
	}

	var buf []byte
	switch req.Codec {
	case CodecWebP:
		params := vips.NewWebpExportParams()
		params.Quality = v.settings.WebP.Quality
		params.ReductionEffort = 6
		params.StripMetadata = false
		buf, _, err = ref.ExportWebp(params)
	case CodecAVIF:
		params := vips.NewAvifExportParams()
		params.Quality = v.settings.AVIF.Quality
		params.Speed = v.settings.AVIF.Speed
		params.StripMetadata = false
		buf, _, err = ref.ExportAvif(params)
	}
	if err != nil {
		return false, fmt.Errorf("vips %s export failed: %w", req.Codec, err)
	}

	if err := os.WriteFile(req.Dest, buf, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", req.Dest, err)
	}
	return true, nil
}
