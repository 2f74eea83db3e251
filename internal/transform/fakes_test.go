package transform

import (
	"context"
	"errors"
	"os"
	"sync"

	"webp-renditions/internal/encoder"
	"webp-renditions/internal/filerepo"
)

// fakeBackend returns canned results and records requests.
type fakeBackend struct {
	name      string
	available bool
	ok        bool
	err       error
	payload   string
	requests  []encoder.Request
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Available(encoder.Codec) bool { return b.available }

func (b *fakeBackend) Transcode(_ context.Context, req encoder.Request) (bool, error) {
	b.requests = append(b.requests, req)
	if !b.ok {
		return false, b.err
	}
	if err := os.WriteFile(req.Dest, []byte(b.payload), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func (b *fakeBackend) calls() int { return len(b.requests) }

type storeCall struct {
	localPath string
	zone      string
	rel       string
	overwrite bool
	content   string
}

// fakeRepo is an in-memory Repository that records every call.
type fakeRepo struct {
	mu        sync.Mutex
	existing  map[string]bool
	existsErr error
	storeErr  error
	source    string
	calls     []string
	stores    []storeCall
}

func newFakeRepo(t interface{ TempDir() string }) *fakeRepo {
	src := t.TempDir() + "/source.jpg"
	_ = os.WriteFile(src, []byte("jpeg"), 0o644)
	return &fakeRepo{existing: map[string]bool{}, source: src}
}

func (r *fakeRepo) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *fakeRepo) Name() string { return "fake" }

func (r *fakeRepo) Exists(_ context.Context, zone, rel string) (bool, error) {
	r.record("exists")
	if r.existsErr != nil {
		return false, r.existsErr
	}
	return r.existing[zone+"/"+rel], nil
}

func (r *fakeRepo) Store(_ context.Context, localPath, zone, rel string, overwrite bool) error {
	r.record("store")
	data, _ := os.ReadFile(localPath)
	r.stores = append(r.stores, storeCall{localPath, zone, rel, overwrite, string(data)})
	return r.storeErr
}

func (r *fakeRepo) LocalCopy(context.Context, string, string) (string, func(), error) {
	r.record("localcopy")
	if r.source == "" {
		return "", nil, filerepo.ErrNotFound
	}
	return r.source, func() {}, nil
}

func (r *fakeRepo) List(context.Context, string, string) ([]string, error) {
	r.record("list")
	return nil, nil
}

func (r *fakeRepo) Delete(context.Context, string, string) error {
	r.record("delete")
	return nil
}

func (r *fakeRepo) Move(context.Context, string, string, string) error {
	r.record("move")
	return nil
}

func (r *fakeRepo) CleanDir(context.Context, string, string) error {
	r.record("cleandir")
	return nil
}

// fakeTemp hands out temp files in a test directory and tracks releases.
type fakeTemp struct {
	dir      string
	fail     bool
	created  []string
	released int
}

func (p *fakeTemp) NewScopedTempFile(prefix, ext string) (*TempFile, error) {
	if p.fail {
		return nil, errors.New("disk full")
	}
	tf, err := OSTempProvider{Dir: p.dir}.NewScopedTempFile(prefix, ext)
	if err != nil {
		return nil, err
	}
	p.created = append(p.created, tf.Path)
	inner := tf.release
	tf.release = func() {
		p.released++
		inner()
	}
	return tf, nil
}

type recordedTransform struct {
	format, kind, outcome string
}

type fakeObserver struct {
	transforms []recordedTransform
	backends   []string
}

func (o *fakeObserver) ObserveTransform(format, kind, outcome string, _ float64) {
	o.transforms = append(o.transforms, recordedTransform{format, kind, outcome})
}

func (o *fakeObserver) ObserveBackend(_, backend, outcome string) {
	o.backends = append(o.backends, backend+":"+outcome)
}
