package transform

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"webp-renditions/internal/encoder"
	"webp-renditions/internal/filerepo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSource = filerepo.File{
	Title:    "Foo.jpg",
	Name:     "Foo.jpg",
	HashPath: "0/06/",
	MimeType: "image/jpeg",
	Width:    800,
	Height:   600,
}

type harness struct {
	repo     *fakeRepo
	temp     *fakeTemp
	observer *fakeObserver
	backends []*fakeBackend
	factory  *Factory
}

func newHarness(t *testing.T, cfg Config, backends ...*fakeBackend) *harness {
	t.Helper()
	h := &harness{
		repo:     newFakeRepo(t),
		temp:     &fakeTemp{dir: t.TempDir()},
		observer: &fakeObserver{},
		backends: backends,
	}
	chain := make([]encoder.Backend, len(backends))
	for i, b := range backends {
		chain[i] = b
	}
	h.factory = NewFactory(cfg, h.repo, chain, WithTempProvider(h.temp), WithObserver(h.observer))
	return h
}

func (h *harness) transformer(t *testing.T, key string, opts Options) *Transformer {
	t.Helper()
	src := testSource
	tr, err := h.factory.CreateTransformer(key, &src, opts)
	require.NoError(t, err)
	return tr
}

func TestTransformStoresFirstSuccess(t *testing.T) {
	cli := &fakeBackend{name: "cli", available: true, err: errors.New("exit status 1")}
	vips := &fakeBackend{name: "vips", available: true, ok: true, payload: "from-vips"}
	soft := &fakeBackend{name: "software", available: true, ok: true, payload: "from-software"}
	h := newHarness(t, Config{}, cli, vips, soft)

	res, err := h.transformer(t, "webp", Options{}).Transform(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, "webp/0/06/Foo.webp", res.StoredPath)
	assert.Equal(t, 1, cli.calls())
	assert.Equal(t, 1, vips.calls())
	assert.Equal(t, 0, soft.calls())

	require.Len(t, h.repo.stores, 1)
	store := h.repo.stores[0]
	assert.Equal(t, filerepo.ZonePublic, store.zone)
	assert.Equal(t, "webp/0/06/Foo.webp", store.rel)
	assert.False(t, store.overwrite)
	assert.Equal(t, "from-vips", store.content)
	assert.Equal(t, vips.requests[0].Dest, store.localPath)

	req := vips.requests[0]
	assert.Equal(t, 0, req.Width)
	assert.Equal(t, encoder.CodecWebP, req.Codec)
	assert.Equal(t, "image/jpeg", req.MimeType)
	assert.True(t, strings.HasPrefix(filepathBase(req.Dest), "transform_"))
	assert.True(t, strings.HasSuffix(req.Dest, ".webp"))

	assert.Equal(t, []string{"cli:error", "vips:success"}, h.observer.backends)
	assert.Equal(t, []recordedTransform{{"webp", "full", "ok"}}, h.observer.transforms)
}

func filepathBase(p string) string {
	return p[strings.LastIndexByte(p, '/')+1:]
}

func TestTransformSkipsExistingOutput(t *testing.T) {
	b := &fakeBackend{name: "cli", available: true, ok: true}
	h := newHarness(t, Config{}, b)
	h.repo.existing["public/webp/0/06/Foo.webp"] = true
	h.repo.existing["thumb/webp/0/06/120px-Foo.webp"] = true

	tr := h.transformer(t, "webp", Options{})

	res, err := tr.Transform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyExists, res.Outcome)
	assert.True(t, res.OK())

	res, err = tr.TransformLikeThumb(context.Background(), 120)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyExists, res.Outcome)

	assert.Equal(t, 0, b.calls())
	assert.Empty(t, h.repo.stores)
	assert.Empty(t, h.temp.created)
}

func TestTransformAllBackendsFail(t *testing.T) {
	cli := &fakeBackend{name: "cli"}
	vips := &fakeBackend{name: "vips", err: errors.New("vips load failed")}
	soft := &fakeBackend{name: "software"}
	h := newHarness(t, Config{}, cli, vips, soft)

	res, err := h.transformer(t, "avif", Options{}).Transform(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.False(t, res.OK())
	assert.NotEmpty(t, res.Reason)
	assert.True(t, strings.HasPrefix(res.Reason, ReasonNoBackend))
	assert.Contains(t, res.Reason, "vips load failed")
	assert.Empty(t, h.repo.stores)
	assert.Equal(t, 1, soft.calls())

	// The temp file is released on the failure path
	require.Len(t, h.temp.created, 1)
	assert.Equal(t, 1, h.temp.released)
	_, statErr := os.Stat(h.temp.created[0])
	assert.True(t, os.IsNotExist(statErr))
}

func TestTransformNoBackendsConfigured(t *testing.T) {
	h := newHarness(t, Config{})

	res, err := h.transformer(t, "webp", Options{}).Transform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, ReasonNoBackend, res.Reason)
}

func TestTransformLikeThumb(t *testing.T) {
	b := &fakeBackend{name: "software", available: true, ok: true, payload: "thumb"}
	h := newHarness(t, Config{}, b)

	res, err := h.transformer(t, "avif", Options{}).TransformLikeThumb(context.Background(), 400)
	require.NoError(t, err)

	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, "avif/0/06/400px-Foo.avif", res.StoredPath)
	assert.Equal(t, 400, b.requests[0].Width)
	assert.Equal(t, encoder.CodecAVIF, b.requests[0].Codec)

	require.Len(t, h.repo.stores, 1)
	assert.Equal(t, filerepo.ZoneThumb, h.repo.stores[0].zone)
	assert.Equal(t, 1, h.temp.released)
	assert.Equal(t, []recordedTransform{{"avif", "thumb", "ok"}}, h.observer.transforms)
}

func TestTransformLikeThumbInvalidWidth(t *testing.T) {
	b := &fakeBackend{name: "software", available: true, ok: true}
	h := newHarness(t, Config{}, b)

	res, err := h.transformer(t, "webp", Options{}).TransformLikeThumb(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 0, b.calls())
}

func TestTransformOverwrite(t *testing.T) {
	b := &fakeBackend{name: "cli", available: true, ok: true, payload: "new"}
	h := newHarness(t, Config{}, b)
	h.repo.existing["public/webp/0/06/Foo.webp"] = true

	res, err := h.transformer(t, "webp", Options{Overwrite: true}).Transform(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, 1, b.calls())
	require.Len(t, h.repo.stores, 1)
	assert.True(t, h.repo.stores[0].overwrite)
	assert.NotContains(t, h.repo.calls, "exists")
}

func TestTransformStoreRace(t *testing.T) {
	b := &fakeBackend{name: "cli", available: true, ok: true}
	h := newHarness(t, Config{}, b)
	h.repo.storeErr = errors.Join(errors.New("link"), filerepo.ErrAlreadyExists)

	res, err := h.transformer(t, "webp", Options{}).Transform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyExists, res.Outcome)
	assert.True(t, res.OK())
}

func TestTransformStoreFailure(t *testing.T) {
	b := &fakeBackend{name: "cli", available: true, ok: true}
	h := newHarness(t, Config{}, b)
	h.repo.storeErr = errors.New("permission denied")

	res, err := h.transformer(t, "webp", Options{}).Transform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Reason, "permission denied")
	assert.Equal(t, 1, h.temp.released)
}

func TestTransformExistsErrorProceeds(t *testing.T) {
	b := &fakeBackend{name: "cli", available: true, ok: true}
	h := newHarness(t, Config{}, b)
	h.repo.existsErr = errors.New("stale file handle")

	res, err := h.transformer(t, "webp", Options{}).Transform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, 1, b.calls())
}

func TestTransformTempFileFailure(t *testing.T) {
	b := &fakeBackend{name: "cli", available: true, ok: true}
	h := newHarness(t, Config{}, b)
	h.temp.fail = true

	res, err := h.transformer(t, "webp", Options{}).Transform(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTempFile))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 0, b.calls())
	assert.Empty(t, h.repo.stores)
}

func TestTransformMissingSource(t *testing.T) {
	b := &fakeBackend{name: "cli", available: true, ok: true}
	h := newHarness(t, Config{}, b)
	h.repo.source = ""

	res, err := h.transformer(t, "webp", Options{}).Transform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 0, b.calls())
	assert.Equal(t, 1, h.temp.released)
}

func TestTransformerHelpers(t *testing.T) {
	b := &fakeBackend{name: "cli", available: true}
	h := newHarness(t, Config{}, b)
	tr := h.transformer(t, "webp", Options{})

	assert.Equal(t, "a/b/foo.webp", tr.ChangeExtension("a/b/foo.png"))
	assert.True(t, tr.CanTransform())
	assert.Equal(t, "webp", tr.Format().Key)
	assert.Equal(t, "Foo.jpg", tr.Source().Name)

	b.available = false
	assert.False(t, tr.CanTransform())
}
