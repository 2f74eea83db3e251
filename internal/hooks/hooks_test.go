package hooks

import (
	"context"
	"errors"
	"testing"

	"webp-renditions/internal/filerepo"
	"webp-renditions/internal/jobqueue"
	"webp-renditions/internal/jobs"
	"webp-renditions/internal/rendtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingQueue struct {
	specs []jobqueue.Spec
	err   error
}

func (q *recordingQueue) Push(_ context.Context, spec jobqueue.Spec) (string, bool, error) {
	if q.err != nil {
		return "", false, q.err
	}
	q.specs = append(q.specs, spec)
	return "id", true, nil
}

func (q *recordingQueue) params() []jobs.TransformImageParams {
	out := make([]jobs.TransformImageParams, 0, len(q.specs))
	for _, s := range q.specs {
		out = append(out, s.Params.(jobs.TransformImageParams))
	}
	return out
}

var testURLs = URLConfig{Public: "/images", Thumb: "/images/thumb"}

func newHooks(env *rendtest.Env) (*Hooks, *recordingQueue) {
	q := &recordingQueue{}
	return New(env.Factory, env.Repo, q, rendtest.HashLevels, testURLs), q
}

func TestValidateSetup(t *testing.T) {
	assert.ErrorIs(t, ValidateSetup(filerepo.Config{HashLevels: 0}), ErrHashLevels)
	assert.NoError(t, ValidateSetup(filerepo.Config{HashLevels: 2}))
}

func TestUploadComplete(t *testing.T) {
	env := rendtest.New(t, "webp", "avif")
	h, q := newHooks(env)

	n, err := h.UploadComplete(context.Background(), "Bar.png")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []jobs.TransformImageParams{
		{Transformer: "webp", Title: "Bar.png"},
		{Transformer: "avif", Title: "Bar.png"},
	}, q.params())
}

func TestUploadCompleteDisabled(t *testing.T) {
	env := rendtest.New(t)
	h, q := newHooks(env)

	cfg := env.Factory.Config()
	cfg.ConvertOnUpload = false
	h.SetConfig(cfg)

	n, err := h.UploadComplete(context.Background(), "Bar.png")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, q.specs)

	// Undelete ignores the upload toggle
	n, err = h.FileUndeleteComplete(context.Background(), "Bar.png")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFileTransformed(t *testing.T) {
	env := rendtest.New(t)
	h, q := newHooks(env)

	n, err := h.FileTransformed(context.Background(), "Bar.png", 220)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []jobs.TransformImageParams{{Transformer: "webp", Title: "Bar.png", Width: 220}}, q.params())

	_, err = h.FileTransformed(context.Background(), "Bar.png", 0)
	assert.Error(t, err)

	cfg := env.Factory.Config()
	cfg.ConvertOnTransform = false
	h.SetConfig(cfg)
	n, err = h.FileTransformed(context.Background(), "Bar.png", 220)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnqueueErrorsAreReturned(t *testing.T) {
	env := rendtest.New(t)
	q := &recordingQueue{err: errors.New("database is locked")}
	h := New(env.Factory, env.Repo, q, rendtest.HashLevels, testURLs)

	_, err := h.UploadComplete(context.Background(), "Bar.png")
	assert.ErrorContains(t, err, "database is locked")
}

func TestUnknownEnabledFormatIsSkipped(t *testing.T) {
	env := rendtest.New(t, "jxl", "webp")
	h, q := newHooks(env)

	n, err := h.UploadComplete(context.Background(), "Bar.png")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "webp", q.params()[0].Transformer)
}

func TestFileDeleteComplete(t *testing.T) {
	env := rendtest.New(t)
	h, _ := newHooks(env)

	env.Put(t, filerepo.ZonePublic, "webp/e/e1/Bar.webp", "full")
	env.Put(t, filerepo.ZoneThumb, "webp/e/e1/120px-Bar.webp", "t")
	env.Put(t, filerepo.ZoneThumb, "webp/e/e1/240px-Bar.webp", "t")
	// Another file in the same hash directory keeps its renditions
	env.Put(t, filerepo.ZoneThumb, "webp/e/e1/120px-Barn.webp", "t")
	env.Put(t, filerepo.ZoneThumb, "webp/e/e1/120px-Bar.webp.old", "t")

	require.NoError(t, h.FileDeleteComplete(context.Background(), "Bar.png"))

	assert.False(t, env.Exists(t, filerepo.ZonePublic, "webp/e/e1/Bar.webp"))
	assert.False(t, env.Exists(t, filerepo.ZoneThumb, "webp/e/e1/120px-Bar.webp"))
	assert.False(t, env.Exists(t, filerepo.ZoneThumb, "webp/e/e1/240px-Bar.webp"))
	assert.True(t, env.Exists(t, filerepo.ZoneThumb, "webp/e/e1/120px-Barn.webp"))
	assert.True(t, env.Exists(t, filerepo.ZoneThumb, "webp/e/e1/120px-Bar.webp.old"))

	// The emptied public hash chain is pruned
	assert.NoDirExists(t, env.Public+"/webp/e")
}

func TestFileDeleteCompleteWithoutRenditions(t *testing.T) {
	env := rendtest.New(t)
	h, _ := newHooks(env)
	assert.NoError(t, h.FileDeleteComplete(context.Background(), "Never_converted.jpg"))
}

func TestLocalFilePurgeThumbnails(t *testing.T) {
	env := rendtest.New(t)
	h, _ := newHooks(env)

	env.Put(t, filerepo.ZonePublic, "webp/e/e1/Bar.webp", "full")
	env.Put(t, filerepo.ZoneThumb, "webp/e/e1/120px-Bar.webp", "t")
	env.Put(t, filerepo.ZoneThumb, "e/e1/Bar.png/120px-Bar.png", "stock thumbnail")

	require.NoError(t, h.LocalFilePurgeThumbnails(context.Background(), "Bar.png"))

	assert.True(t, env.Exists(t, filerepo.ZonePublic, "webp/e/e1/Bar.webp"))
	assert.False(t, env.Exists(t, filerepo.ZoneThumb, "webp/e/e1/120px-Bar.webp"))
	assert.True(t, env.Exists(t, filerepo.ZoneThumb, "e/e1/Bar.png/120px-Bar.png"))
}

func TestPageMoveComplete(t *testing.T) {
	env := rendtest.New(t)
	h, _ := newHooks(env)

	newHash := filerepo.HashPath("Baz.png", rendtest.HashLevels)

	env.Put(t, filerepo.ZonePublic, "webp/e/e1/Bar.webp", "full")
	env.Put(t, filerepo.ZoneThumb, "webp/e/e1/120px-Bar.webp", "t120")
	env.Put(t, filerepo.ZoneThumb, "webp/e/e1/240px-Bar.webp", "t240")

	require.NoError(t, h.PageMoveComplete(context.Background(), "Bar.png", "Baz.png"))

	assert.False(t, env.Exists(t, filerepo.ZonePublic, "webp/e/e1/Bar.webp"))
	assert.True(t, env.Exists(t, filerepo.ZonePublic, "webp/"+newHash+"Baz.webp"))
	assert.True(t, env.Exists(t, filerepo.ZoneThumb, "webp/"+newHash+"120px-Baz.webp"))
	assert.True(t, env.Exists(t, filerepo.ZoneThumb, "webp/"+newHash+"240px-Baz.webp"))
	assert.False(t, env.Exists(t, filerepo.ZoneThumb, "webp/e/e1/120px-Bar.webp"))
}

func TestPageMoveCompleteWithoutRenditions(t *testing.T) {
	env := rendtest.New(t)
	h, _ := newHooks(env)
	assert.NoError(t, h.PageMoveComplete(context.Background(), "Bar.png", "Baz.png"))
	assert.NoError(t, h.PageMoveComplete(context.Background(), "Bar.png", "bar.png"))
}

func TestThumbWidth(t *testing.T) {
	tests := []struct {
		base  string
		width int
		ok    bool
	}{
		{"120px-Bar.webp", 120, true},
		{"px-Bar.webp", 0, false},
		{"12apx-Bar.webp", 0, false},
		{"120px-Barn.webp", 0, false},
		{"0px-Bar.webp", 0, false},
		{"Bar.webp", 0, false},
	}
	for _, tt := range tests {
		w, ok := thumbWidth(tt.base, "Bar.webp")
		assert.Equal(t, tt.ok, ok, tt.base)
		assert.Equal(t, tt.width, w, tt.base)
	}
}


func TestUnsupportedSourceTypeIsNotQueued(t *testing.T) {
	env := rendtest.New(t, "webp", "avif")
	env.UploadRaw(t, "Bar.gif", rendtest.GIFHeader)
	h, q := newHooks(env)
	ctx := context.Background()

	n, err := h.UploadComplete(ctx, "Bar.gif")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = h.FileUndeleteComplete(ctx, "Bar.gif")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = h.FileTransformed(ctx, "Bar.gif", 120)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Empty(t, q.specs)
}

func TestStoredUploadIsQueuedPerFormat(t *testing.T) {
	env := rendtest.New(t, "webp", "avif")
	env.Upload(t, "Bar.png", 8, 8)
	h, q := newHooks(env)

	n, err := h.UploadComplete(context.Background(), "Bar.png")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, q.specs, 2)
}

func TestNoUsableBackendIsNotQueued(t *testing.T) {
	env := rendtest.New(t)
	env.Upload(t, "Bar.png", 8, 8)
	env.Backend.Unavailable = true
	h, q := newHooks(env)

	n, err := h.UploadComplete(context.Background(), "Bar.png")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, q.specs)
}

func TestEnabledFollowsSetConfig(t *testing.T) {
	env := rendtest.New(t, "webp")
	h, _ := newHooks(env)
	assert.Equal(t, []string{"webp"}, h.Enabled())

	cfg := env.Factory.Config()
	cfg.Enabled = []string{"webp", "avif"}
	h.SetConfig(cfg)
	assert.Equal(t, []string{"webp", "avif"}, h.Enabled())
}
