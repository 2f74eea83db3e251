package watch

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"webp-renditions/internal/filerepo"
	"webp-renditions/internal/logging"
	"webp-renditions/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a new file must stay unchanged before it is
// reported.
const DefaultSettle = 500 * time.Millisecond

// UploadHandler is told about new originals. *hooks.Hooks implements it.
type UploadHandler interface {
	UploadComplete(ctx context.Context, title string) (int, error)
}

// Watcher reports files that appear at their hashed upload path below the
// public root. Renditions and thumbnails never match a hashed path, so
// they are ignored.
type Watcher struct {
	root       string
	hashLevels int
	handler    UploadHandler
	settle     time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// New creates a watcher for root.
func New(root string, hashLevels int, handler UploadHandler) *Watcher {
	return &Watcher{
		root:       root,
		hashLevels: hashLevels,
		handler:    handler,
		settle:     DefaultSettle,
		pending:    make(map[string]*time.Timer),
	}
}

// SetSettle changes the quiet period. Call before Run.
func (w *Watcher) SetSettle(d time.Duration) {
	w.settle = d
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return err
	}
	defer func() {
		if err := fw.Close(); err != nil {
			logging.Error("failed to close upload watcher: %v", err)
		}
	}()

	count := w.addTree(fw, w.root)
	metrics.WatchedDirectories.Set(float64(count))
	logging.Info("Upload watcher started, watching %d directories below %s", count, w.root)

	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Error("Upload watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) int {
	count := 0
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if addErr := fw.Add(p); addErr != nil {
			logging.Warn("failed to add path to upload watcher %s: %v", p, addErr)
			metrics.WatcherErrors.Inc()
			return nil
		}
		count++
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Error("failed to walk %s for upload watcher: %v", dir, err)
		metrics.WatcherErrors.Inc()
	}
	return count
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	if strings.Contains(filepath.ToSlash(event.Name), "/.") {
		return
	}
	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	switch {
	case event.Op&fsnotify.Create != 0:
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			n := w.addTree(fw, event.Name)
			metrics.WatchedDirectories.Add(float64(n))
			w.scheduleTree(ctx, event.Name)
			return
		}
		w.schedule(ctx, event.Name)
	case event.Op&fsnotify.Write != 0:
		w.mu.Lock()
		_, waiting := w.pending[event.Name]
		w.mu.Unlock()
		if waiting {
			w.schedule(ctx, event.Name)
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.cancel(event.Name)
	}
}

func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}

// Title returns the upload title for a path below root, or false when the
// path is not at its hashed upload location.
func Title(root, p string, hashLevels int) (string, bool) {
	rel, err := filepath.Rel(root, p)
	if err != nil || !filepath.IsLocal(rel) {
		return "", false
	}
	dir, name := path.Split(filepath.ToSlash(rel))
	if name == "" || dir != filerepo.HashPath(name, hashLevels) {
		return "", false
	}
	return name, true
}

// schedule (re)starts the quiet period for p.
func (w *Watcher) schedule(ctx context.Context, p string) {
	title, ok := Title(w.root, p, w.hashLevels)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	// A timer that already fired finds itself replaced and returns
	if old, ok := w.pending[p]; ok && old.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[p] != t {
			w.mu.Unlock()
			return
		}
		delete(w.pending, p)
		w.mu.Unlock()
		w.report(ctx, title)
	})
	w.pending[p] = t
}

// scheduleTree schedules files written into dir before it was watched.
func (w *Watcher) scheduleTree(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err == nil && d.Type().IsRegular() {
			w.schedule(ctx, p)
		}
		return nil
	})
}

func (w *Watcher) cancel(p string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[p]; ok {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, p)
	}
}

// stop drops pending reports and waits for running ones.
func (w *Watcher) stop() {
	w.mu.Lock()
	for p, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, p)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) report(ctx context.Context, title string) {
	if ctx.Err() != nil {
		return
	}
	n, err := w.handler.UploadComplete(ctx, title)
	if err != nil {
		logging.Warn("Upload hook failed for %s: %v", title, err)
		return
	}
	logging.Debug("Upload of %s queued %d rendition jobs", title, n)
}
