package filerepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"webp-renditions/internal/filesystem"
	"webp-renditions/internal/logging"
)

// Local stores zones as directories on a (possibly NFS mounted) filesystem.
type Local struct {
	roots map[string]string
	retry filesystem.RetryConfig
}

// NewLocal creates a local repository from zone name → root directory.
func NewLocal(roots map[string]string) *Local {
	copied := make(map[string]string, len(roots))
	for zone, root := range roots {
		copied[zone] = filepath.Clean(root)
	}
	return &Local{
		roots: copied,
		retry: filesystem.DefaultRetryConfig(),
	}
}

// Name implements Repository.
func (l *Local) Name() string { return "local" }

// Root returns the directory backing zone.
func (l *Local) Root(zone string) (string, bool) {
	root, ok := l.roots[zone]
	return root, ok
}

func (l *Local) resolve(zone, rel string) (string, error) {
	root, ok := l.roots[zone]
	if !ok {
		return "", fmt.Errorf("%w: unknown zone %q", ErrInvalidPath, zone)
	}
	clean, err := cleanRel(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}

// Exists implements Repository.
func (l *Local) Exists(_ context.Context, zone, rel string) (bool, error) {
	p, err := l.resolve(zone, rel)
	if err != nil {
		return false, err
	}
	if _, err := filesystem.StatWithRetry(p, l.retry); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Store implements Repository. The file is first copied next to its
// destination; overwrite renames it into place, otherwise it is hard linked
// so that a concurrent writer cannot be clobbered.
func (l *Local) Store(_ context.Context, localPath, zone, rel string, overwrite bool) error {
	dest, err := l.resolve(zone, rel)
	if err != nil {
		return err
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := copyToTemp(localPath, dir)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if overwrite {
		if err := filesystem.RenameWithRetry(tmp, dest, l.retry); err != nil {
			return fmt.Errorf("failed to store %s: %w", rel, err)
		}
		return nil
	}

	if err := os.Link(tmp, dest); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, zone, rel)
		}
		return fmt.Errorf("failed to store %s: %w", rel, err)
	}
	return nil
}

func copyToTemp(src, dir string) (string, error) {
	in, err := filesystem.OpenWithRetry(src, filesystem.DefaultRetryConfig())
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.CreateTemp(dir, ".store-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Chmod(0o644); err != nil {
		logging.Debug("chmod %s: %v", out.Name(), err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

// LocalCopy implements Repository. Local files are read in place.
func (l *Local) LocalCopy(_ context.Context, zone, rel string) (string, func(), error) {
	p, err := l.resolve(zone, rel)
	if err != nil {
		return "", nil, err
	}
	if _, err := filesystem.StatWithRetry(p, l.retry); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s/%s", ErrNotFound, zone, rel)
		}
		return "", nil, err
	}
	return p, func() {}, nil
}

// List implements Repository.
func (l *Local) List(_ context.Context, zone, dir string) ([]string, error) {
	root, ok := l.roots[zone]
	if !ok {
		return nil, fmt.Errorf("%w: unknown zone %q", ErrInvalidPath, zone)
	}
	start, err := l.resolve(zone, dir)
	if err != nil {
		return nil, err
	}

	var out []string
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if filepath.Base(p)[0] == '.' {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s/%s: %w", zone, dir, err)
	}

	sort.Strings(out)
	return out, nil
}

// Delete implements Repository.
func (l *Local) Delete(_ context.Context, zone, rel string) error {
	p, err := l.resolve(zone, rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s/%s: %w", zone, rel, err)
	}
	return nil
}

// Move implements Repository.
func (l *Local) Move(_ context.Context, zone, from, to string) error {
	src, err := l.resolve(zone, from)
	if err != nil {
		return err
	}
	dst, err := l.resolve(zone, to)
	if err != nil {
		return err
	}

	if _, err := filesystem.StatWithRetry(src, l.retry); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, zone, from)
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}
	if err := filesystem.RenameWithRetry(src, dst, l.retry); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", from, to, err)
	}
	return nil
}

// CleanDir implements Repository. Zone roots are never removed.
func (l *Local) CleanDir(_ context.Context, zone, dir string) error {
	p, err := l.resolve(zone, dir)
	if err != nil {
		return err
	}
	_, err = l.removeEmpty(p)
	return err
}

func (l *Local) isRoot(dir string) bool {
	for _, root := range l.roots {
		if root == dir {
			return true
		}
	}
	return false
}

// removeEmpty deletes empty directories below and including dir, depth
// first, and reports whether dir was removed. Zone roots are kept.
func (l *Local) removeEmpty(dir string) (bool, error) {
	entries, err := filesystem.ReadDirWithRetry(dir, filesystem.DefaultRetryConfig())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, err
	}

	remaining := len(entries)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		removed, err := l.removeEmpty(filepath.Join(dir, e.Name()))
		if err != nil {
			return false, err
		}
		if removed {
			remaining--
		}
	}

	if remaining > 0 || l.isRoot(dir) {
		return false, nil
	}
	if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	logging.Debug("Removed empty directory %s", dir)
	return true, nil
}
