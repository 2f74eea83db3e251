package transform

import (
	"os"
	"strings"
	"testing"

	"webp-renditions/internal/encoder"
	"webp-renditions/internal/filerepo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProber(t *testing.T) {
	cli := &fakeBackend{name: "cli"}
	vips := &fakeBackend{name: "vips"}
	f := WebP([]encoder.Backend{cli, vips})
	p := Prober{}

	assert.False(t, p.IsFormatSupported(f))
	assert.False(t, p.CanTransform(f, filerepo.File{MimeType: "image/jpeg"}))

	vips.available = true
	assert.True(t, p.IsFormatSupported(f))
	assert.True(t, p.CanTransform(f, filerepo.File{MimeType: "image/jpeg"}))
	assert.True(t, p.CanTransform(f, filerepo.File{MimeType: "image/jpg"}))
	assert.False(t, p.CanTransform(f, filerepo.File{MimeType: "image/gif"}))
	assert.False(t, p.CanTransform(f, filerepo.File{MimeType: "image/tiff"}))

	assert.Equal(t, []BackendStatus{
		{Backend: "cli", Available: false},
		{Backend: "vips", Available: true},
	}, p.Report(f))
}

func TestFormats(t *testing.T) {
	w := WebP(nil)
	a := AVIF(nil)

	assert.Equal(t, "image/webp", w.MimeType)
	assert.Equal(t, "image/avif", a.MimeType)
	assert.Equal(t, "webp/a/b/foo.webp", w.FullPath("a/b/foo.JPG"))
	assert.Equal(t, "avif/a/b/150px-foo.avif", a.ThumbPath("foo.png", "a/b/", 150))

	// Formats do not share their MIME lists
	w.SupportedMimes[0] = "image/x-test"
	assert.Equal(t, "image/jpeg", a.SupportedMimes[0])
	assert.Equal(t, "image/jpeg", DefaultSupportedMimes[0])
}

func TestOSTempProvider(t *testing.T) {
	dir := t.TempDir()
	tf, err := OSTempProvider{Dir: dir}.NewScopedTempFile("transform_", "webp")
	require.NoError(t, err)

	base := tf.Path[strings.LastIndexByte(tf.Path, '/')+1:]
	assert.True(t, strings.HasPrefix(base, "transform_"))
	assert.True(t, strings.HasSuffix(base, ".webp"))
	_, err = os.Stat(tf.Path)
	require.NoError(t, err)

	tf.Release()
	tf.Release()
	_, err = os.Stat(tf.Path)
	assert.True(t, os.IsNotExist(err))

	_, err = OSTempProvider{Dir: dir + "/missing"}.NewScopedTempFile("transform_", "webp")
	assert.ErrorIs(t, err, ErrTempFile)
}
