// Package rendtest provides fixtures for tests that run the rendition
// pipeline against a local repository.
package rendtest

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"webp-renditions/internal/encoder"
	"webp-renditions/internal/filerepo"
	"webp-renditions/internal/transform"
)

// HashLevels is the hash depth fixtures are stored with.
const HashLevels = 2

// Env is a local repository with public and thumb zones in a temp dir.
type Env struct {
	Repo    *filerepo.Local
	Public  string
	Thumb   string
	Backend *Backend
	Factory *transform.Factory
}

// New creates an Env whose factory enables the given formats ("webp" when
// none are given) and encodes with a single fake backend.
func New(t testing.TB, enabled ...string) *Env {
	t.Helper()
	if len(enabled) == 0 {
		enabled = []string{"webp"}
	}

	root := t.TempDir()
	env := &Env{
		Public:  filepath.Join(root, "images"),
		Thumb:   filepath.Join(root, "images", "thumb"),
		Backend: &Backend{Payload: "rendition"},
	}
	for _, dir := range []string{env.Public, env.Thumb} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	env.Repo = filerepo.NewLocal(map[string]string{
		filerepo.ZonePublic: env.Public,
		filerepo.ZoneThumb:  env.Thumb,
	})

	cfg := transform.Config{
		Enabled:            enabled,
		TempDir:            t.TempDir(),
		ConvertOnUpload:    true,
		ConvertOnTransform: true,
		ResponsiveImages:   true,
		ResponsiveJobs:     true,
		ConvertInQueue:     true,
	}
	env.Factory = transform.NewFactory(cfg, env.Repo, []encoder.Backend{env.Backend})
	return env
}

// WithConfig rebuilds the factory with cfg. TempDir is kept when unset.
func (e *Env) WithConfig(cfg transform.Config) *Env {
	if cfg.TempDir == "" {
		cfg.TempDir = e.Factory.Config().TempDir
	}
	e.Factory = transform.NewFactory(cfg, e.Repo, []encoder.Backend{e.Backend})
	return e
}

// Upload writes a w×h PNG for title into the public zone at its hashed
// path and returns the stored file name.
func (e *Env) Upload(t testing.TB, title string, w, h int) string {
	t.Helper()
	name := filerepo.NormalizeTitle(title)
	p := filepath.Join(e.Public, filepath.FromSlash(filerepo.HashPath(name, HashLevels)), name)
	WritePNG(t, p, w, h)
	return name
}

// UploadRaw stores content for title at its hashed path in the public zone
// and returns the stored file name.
func (e *Env) UploadRaw(t testing.TB, title, content string) string {
	t.Helper()
	name := filerepo.NormalizeTitle(title)
	e.Put(t, filerepo.ZonePublic, filerepo.HashPath(name, HashLevels)+name, content)
	return name
}

// GIFHeader is enough of a GIF for MIME sniffing.
const GIFHeader = "GIF89a\x01\x00\x01\x00\x00\x00\x00;"

// Put writes content to rel in zone.
func (e *Env) Put(t testing.TB, zone, rel, content string) {
	t.Helper()
	root, _ := e.Repo.Root(zone)
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Exists reports whether rel is present in zone.
func (e *Env) Exists(t testing.TB, zone, rel string) bool {
	t.Helper()
	ok, err := e.Repo.Exists(context.Background(), zone, rel)
	if err != nil {
		t.Fatal(err)
	}
	return ok
}

// WritePNG writes a w×h PNG to path, creating parent directories.
func WritePNG(t testing.TB, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{B: 180, A: 255})
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// Backend is an encoder.Backend that writes Payload to the destination.
type Backend struct {
	Payload string
	// Unavailable makes the backend decline every request.
	Unavailable bool
	// Err fails every transcode attempt.
	Err error

	mu       sync.Mutex
	requests []encoder.Request
}

// Name implements encoder.Backend.
func (b *Backend) Name() string { return "fake" }

// Available implements encoder.Backend.
func (b *Backend) Available(encoder.Codec) bool { return !b.Unavailable }

// Transcode implements encoder.Backend.
func (b *Backend) Transcode(_ context.Context, req encoder.Request) (bool, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()

	if b.Unavailable {
		return false, nil
	}
	if b.Err != nil {
		return false, b.Err
	}
	return true, os.WriteFile(req.Dest, []byte(b.Payload), 0o644)
}

// Requests returns the requests seen so far.
func (b *Backend) Requests() []encoder.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]encoder.Request(nil), b.requests...)
}
