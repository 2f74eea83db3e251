package transform

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"webp-renditions/internal/encoder"
	"webp-renditions/internal/filerepo"
	"webp-renditions/internal/logging"
)

// Factory resolves format keys to Formats and builds Transformers.
type Factory struct {
	mu       sync.RWMutex
	formats  map[string]*Format
	cfg      Config
	repo     filerepo.Repository
	temp     TempProvider
	observer Observer
	prober   Prober
}

// FactoryOption customizes a Factory.
type FactoryOption func(*Factory)

// WithTempProvider replaces the OS temp provider.
func WithTempProvider(p TempProvider) FactoryOption {
	return func(f *Factory) { f.temp = p }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) FactoryOption {
	return func(f *Factory) {
		if o != nil {
			f.observer = o
		}
	}
}

// NewFactory creates a factory with the built-in WebP and AVIF formats, both
// using backends in order.
func NewFactory(cfg Config, repo filerepo.Repository, backends []encoder.Backend, opts ...FactoryOption) *Factory {
	f := &Factory{
		formats:  make(map[string]*Format),
		cfg:      cfg,
		repo:     repo,
		temp:     OSTempProvider{Dir: cfg.TempDir},
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(f)
	}

	f.Register(WebP(backends))
	f.Register(AVIF(backends))
	return f
}

// Register adds or replaces a format under its key.
func (f *Factory) Register(format *Format) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.formats[normalizeKey(format.Key)] = format
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Format returns the registered format for key.
func (f *Factory) Format(key string) (*Format, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	format, ok := f.formats[normalizeKey(key)]
	return format, ok
}

// Keys returns all registered format keys, sorted.
func (f *Factory) Keys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	keys := make([]string, 0, len(f.formats))
	for k := range f.formats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Enabled returns the configured formats in configuration order. Unknown
// keys are logged and skipped.
func (f *Factory) Enabled() []*Format {
	out := make([]*Format, 0, len(f.cfg.Enabled))
	for _, key := range f.cfg.Enabled {
		format, ok := f.Format(key)
		if !ok {
			logging.Warn("Enabled transformer %q is not recognized, skipping", key)
			continue
		}
		out = append(out, format)
	}
	return out
}

// Config returns the configuration the factory was built with.
func (f *Factory) Config() Config { return f.cfg }

// Prober returns the capability prober.
func (f *Factory) Prober() Prober { return f.prober }

// CreateTransformer builds a Transformer for src in the format named by
// key. Validation happens before any I/O: a nil src yields ErrNoSource, an
// unknown key ErrInvalidFormat, and a source MIME type the format does not
// accept an *UnsupportedMimeError.
func (f *Factory) CreateTransformer(key string, src *filerepo.File, opts Options) (*Transformer, error) {
	if src == nil {
		return nil, ErrNoSource
	}

	format, ok := f.Format(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, key)
	}

	if !format.Supports(src.MimeType) {
		return nil, &UnsupportedMimeError{
			Format:    format.Key,
			MimeType:  src.MimeType,
			Supported: format.SupportedMimes,
		}
	}

	if slices.ContainsFunc(f.cfg.ForceOverwrite, func(k string) bool { return normalizeKey(k) == format.Key }) {
		opts.Overwrite = true
	}

	return &Transformer{
		format:   format,
		src:      *src,
		opts:     opts,
		repo:     f.repo,
		temp:     f.temp,
		prober:   f.prober,
		observer: f.observer,
	}, nil
}
