package hooks

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"

	"webp-renditions/internal/filerepo"
	"webp-renditions/internal/jobqueue"
	"webp-renditions/internal/jobs"
	"webp-renditions/internal/logging"
	"webp-renditions/internal/metrics"
	"webp-renditions/internal/transform"

	"go.uber.org/multierr"
)

// ErrHashLevels is returned by ValidateSetup for flat upload directories.
var ErrHashLevels = errors.New("renditions require hashed upload directories: repository.hash_levels must be non-zero")

// ValidateSetup checks the repository layout renditions depend on.
func ValidateSetup(cfg filerepo.Config) error {
	if cfg.HashLevels == 0 {
		return ErrHashLevels
	}
	return nil
}

// Enqueuer accepts jobs. *jobqueue.Queue implements it.
type Enqueuer interface {
	Push(ctx context.Context, spec jobqueue.Spec) (string, bool, error)
}

// URLConfig holds the URL prefixes renditions are served under.
type URLConfig struct {
	Public string `mapstructure:"public_url" yaml:"public_url" default:"/images"`
	Thumb  string `mapstructure:"thumb_url" yaml:"thumb_url" default:"/images/thumb"`
}

// Hooks reacts to file lifecycle events by queueing, moving and purging
// renditions.
type Hooks struct {
	factory    *transform.Factory
	repo       filerepo.Repository
	queue      Enqueuer
	hashLevels int
	urls       URLConfig

	mu  sync.RWMutex
	cfg transform.Config
}

// New creates the hooks. The transform configuration starts as the
// factory's and can be replaced with SetConfig.
func New(factory *transform.Factory, repo filerepo.Repository, queue Enqueuer, hashLevels int, urls URLConfig) *Hooks {
	return &Hooks{
		factory:    factory,
		repo:       repo,
		queue:      queue,
		hashLevels: hashLevels,
		urls:       urls,
		cfg:        factory.Config(),
	}
}

// SetConfig swaps the toggles and enabled formats on config reload.
func (h *Hooks) SetConfig(cfg transform.Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
}

func (h *Hooks) config() transform.Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Enabled returns the format keys the hooks currently produce renditions
// for, reflecting the last SetConfig.
func (h *Hooks) Enabled() []string {
	return slices.Clone(h.config().Enabled)
}

func (h *Hooks) formats() []*transform.Format {
	cfg := h.config()
	out := make([]*transform.Format, 0, len(cfg.Enabled))
	for _, key := range cfg.Enabled {
		f, ok := h.factory.Format(key)
		if !ok {
			logging.Warn("Enabled transformer %q is not recognized, skipping", key)
			continue
		}
		out = append(out, f)
	}
	return out
}

func record(event string, err error) error {
	status := "ok"
	if err != nil {
		status = "error"
		logging.Warn("%s: %v", event, err)
	}
	metrics.HookEventsTotal.WithLabelValues(event, status).Inc()
	return err
}

func (h *Hooks) push(ctx context.Context, p jobs.TransformImageParams) (bool, error) {
	_, queued, err := h.queue.Push(ctx, jobs.NewTransformImage(p))
	return queued, err
}

// enqueueAll pushes one job per enabled format that can transform title and
// returns how many were new. A title not in the repository yet is queued
// for every format; its jobs report the missing file.
func (h *Hooks) enqueueAll(ctx context.Context, title string, width int) (int, error) {
	file, err := filerepo.Lookup(ctx, h.repo, title, h.hashLevels)
	switch {
	case errors.Is(err, filerepo.ErrNotFound):
		logging.Debug("%s is not stored yet, queueing without a type check", title)
		file = nil
	case err != nil:
		return 0, err
	}

	var errs error
	n := 0
	prober := h.factory.Prober()
	for _, f := range h.formats() {
		if file != nil && !prober.CanTransform(f, *file) {
			logging.Debug("[%s] cannot transform %s (%s), not queueing", f.Key, file.Rel(), file.MimeType)
			continue
		}
		queued, err := h.push(ctx, jobs.TransformImageParams{Transformer: f.Key, Title: title, Width: width})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if queued {
			n++
		}
	}
	return n, errs
}

// UploadComplete queues a full size rendition per enabled format.
func (h *Hooks) UploadComplete(ctx context.Context, title string) (int, error) {
	if !h.config().ConvertOnUpload {
		return 0, nil
	}
	n, err := h.enqueueAll(ctx, title, 0)
	return n, record("upload", err)
}

// FileUndeleteComplete queues a full size rendition per enabled format.
// It runs whatever the upload toggle says.
func (h *Hooks) FileUndeleteComplete(ctx context.Context, title string) (int, error) {
	n, err := h.enqueueAll(ctx, title, 0)
	return n, record("undelete", err)
}

// FileTransformed queues a rendition of the width a thumbnail was just
// rendered at.
func (h *Hooks) FileTransformed(ctx context.Context, title string, width int) (int, error) {
	if !h.config().ConvertOnTransform {
		return 0, nil
	}
	if width <= 0 {
		return 0, record("thumbnail", fmt.Errorf("invalid thumbnail width %d", width))
	}
	n, err := h.enqueueAll(ctx, title, width)
	return n, record("thumbnail", err)
}

// located is a title resolved to its stored name and hash directory
// without touching the repository.
type located struct {
	name string
	hash string
}

func (h *Hooks) locate(title string) located {
	name := filerepo.NormalizeTitle(title)
	return located{name: name, hash: filerepo.HashPath(name, h.hashLevels)}
}

// ownThumbs lists the thumbnail renditions of name in f's thumb directory.
// Other files sharing the hash directory are left out.
func (h *Hooks) ownThumbs(ctx context.Context, f *transform.Format, loc located) ([]string, error) {
	dir := path.Join(f.DirName, loc.hash)
	all, err := h.repo.List(ctx, filerepo.ZoneThumb, dir)
	if err != nil {
		return nil, err
	}

	want := f.ChangeExtension(loc.name)
	var own []string
	for _, rel := range all {
		if _, ok := thumbWidth(path.Base(rel), want); ok && path.Dir(rel) == dir {
			own = append(own, rel)
		}
	}
	return own, nil
}

// thumbWidth parses "<width>px-<name>" and reports the width when the rest
// is exactly name.
func thumbWidth(base, name string) (int, bool) {
	prefix, rest, ok := strings.Cut(base, "px-")
	if !ok || rest != name || prefix == "" {
		return 0, false
	}
	for _, r := range prefix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	width, err := strconv.Atoi(prefix)
	return width, err == nil && width > 0
}

// hashRoot returns the top hash directory of loc inside f's directory,
// e.g. "webp/e". CleanDir below it prunes the whole hash chain.
func hashRoot(f *transform.Format, loc located) string {
	top, _, _ := strings.Cut(loc.hash, "/")
	return path.Join(f.DirName, top)
}

// FileDeleteComplete removes the full size rendition and the thumbnail
// renditions of a deleted file, then prunes empty directories.
func (h *Hooks) FileDeleteComplete(ctx context.Context, title string) error {
	loc := h.locate(title)
	var errs error

	for _, f := range h.formats() {
		thumbs, err := h.ownThumbs(ctx, f, loc)
		errs = multierr.Append(errs, err)
		for _, rel := range thumbs {
			errs = multierr.Append(errs, h.repo.Delete(ctx, filerepo.ZoneThumb, rel))
		}

		full := f.FullPath(loc.hash + loc.name)
		errs = multierr.Append(errs, h.repo.Delete(ctx, filerepo.ZonePublic, full))

		errs = multierr.Append(errs, h.repo.CleanDir(ctx, filerepo.ZoneThumb, hashRoot(f, loc)))
		errs = multierr.Append(errs, h.repo.CleanDir(ctx, filerepo.ZonePublic, hashRoot(f, loc)))
		logging.Debug("[%s] Purged renditions of %s", f.Key, loc.name)
	}

	return record("delete", errs)
}

// LocalFilePurgeThumbnails removes the thumbnail renditions of a file.
func (h *Hooks) LocalFilePurgeThumbnails(ctx context.Context, title string) error {
	loc := h.locate(title)
	var errs error

	for _, f := range h.formats() {
		thumbs, err := h.ownThumbs(ctx, f, loc)
		errs = multierr.Append(errs, err)
		for _, rel := range thumbs {
			errs = multierr.Append(errs, h.repo.Delete(ctx, filerepo.ZoneThumb, rel))
		}
		errs = multierr.Append(errs, h.repo.CleanDir(ctx, filerepo.ZoneThumb, hashRoot(f, loc)))
	}

	return record("purge-thumbnails", errs)
}

// PageMoveComplete moves the renditions of a renamed file to its new name
// and hash directory. Missing renditions are skipped.
func (h *Hooks) PageMoveComplete(ctx context.Context, oldTitle, newTitle string) error {
	from, to := h.locate(oldTitle), h.locate(newTitle)
	if from == to {
		return nil
	}

	var errs error
	for _, f := range h.formats() {
		oldFull := f.FullPath(from.hash + from.name)
		newFull := f.FullPath(to.hash + to.name)
		errs = multierr.Append(errs, h.move(ctx, filerepo.ZonePublic, oldFull, newFull))
		errs = multierr.Append(errs, h.repo.CleanDir(ctx, filerepo.ZonePublic, hashRoot(f, from)))

		thumbs, err := h.ownThumbs(ctx, f, from)
		errs = multierr.Append(errs, err)
		oldName := f.ChangeExtension(from.name)
		for _, rel := range thumbs {
			width, _ := thumbWidth(path.Base(rel), oldName)
			errs = multierr.Append(errs, h.move(ctx, filerepo.ZoneThumb, rel, f.ThumbPath(to.name, to.hash, width)))
		}
		errs = multierr.Append(errs, h.repo.CleanDir(ctx, filerepo.ZoneThumb, hashRoot(f, from)))
	}

	return record("move", errs)
}

func (h *Hooks) move(ctx context.Context, zone, from, to string) error {
	err := h.repo.Move(ctx, zone, from, to)
	if errors.Is(err, filerepo.ErrNotFound) {
		logging.Debug("No rendition at %s/%s to move", zone, from)
		return nil
	}
	if err == nil {
		logging.Debug("Moved %s/%s to %s", zone, from, to)
	}
	return err
}
