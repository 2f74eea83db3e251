package filerepo

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Zone names understood by every adapter.
const (
	ZonePublic = "public"
	ZoneThumb  = "thumb"
)

var (
	// ErrAlreadyExists is returned by Store when overwrite is off and the
	// destination is already present.
	ErrAlreadyExists = errors.New("destination already exists")
	// ErrNotFound is returned when a source object does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidPath is returned for unknown zones and relative paths that
	// escape the zone root.
	ErrInvalidPath = errors.New("invalid repository path")
)

// Repository is the narrow storage port the transform pipeline, hooks and
// batch tools talk to. Paths are slash separated and relative to a zone.
type Repository interface {
	// Name identifies the adapter ("local", "s3", "gcs", "sftp").
	Name() string

	// Exists reports whether rel is present in zone.
	Exists(ctx context.Context, zone, rel string) (bool, error)

	// Store copies the local file at localPath to rel in zone. With overwrite
	// off, an existing destination yields ErrAlreadyExists and is left intact.
	Store(ctx context.Context, localPath, zone, rel string, overwrite bool) error

	// LocalCopy returns a readable local path for rel. The release function
	// must be called once the caller is done with the path.
	LocalCopy(ctx context.Context, zone, rel string) (string, func(), error)

	// List returns every file below dir, recursively, as zone-relative paths.
	// A missing dir yields an empty list.
	List(ctx context.Context, zone, dir string) ([]string, error)

	// Delete removes rel. Deleting a missing file is not an error.
	Delete(ctx context.Context, zone, rel string) error

	// Move renames from to to within zone. A missing source yields ErrNotFound.
	Move(ctx context.Context, zone, from, to string) error

	// CleanDir removes empty directories below and including dir. Adapters
	// without real directories treat it as a no-op.
	CleanDir(ctx context.Context, zone, dir string) error
}

// cleanRel validates a zone-relative path and returns it in slash form
// without leading or trailing separators. The empty path names the zone root.
func cleanRel(rel string) (string, error) {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" {
		return "", nil
	}
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return path.Clean(rel), nil
}

// joinKey joins an object-store prefix with a zone and a relative path.
func joinKey(prefix, zone, rel string) string {
	return strings.TrimPrefix(path.Join(prefix, zone, rel), "/")
}

func checkZone(zone string) error {
	switch zone {
	case ZonePublic, ZoneThumb:
		return nil
	default:
		return fmt.Errorf("%w: unknown zone %q", ErrInvalidPath, zone)
	}
}
