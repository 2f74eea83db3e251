package transform

import (
	"fmt"
	"os"
	"strings"
)

// TempFile is a scoped temporary file. Release removes it and may be called
// more than once.
type TempFile struct {
	Path    string
	release func()
}

// Release deletes the file.
func (t *TempFile) Release() {
	if t != nil && t.release != nil {
		t.release()
		t.release = nil
	}
}

// NewTempFile wraps an existing path and release function. It is meant for
// alternative providers.
func NewTempFile(path string, release func()) *TempFile {
	return &TempFile{Path: path, release: release}
}

// TempProvider allocates scoped temp files.
type TempProvider interface {
	NewScopedTempFile(prefix, ext string) (*TempFile, error)
}

// OSTempProvider creates temp files in Dir, or the OS temp dir when empty.
type OSTempProvider struct {
	Dir string
}

// NewScopedTempFile implements TempProvider. The file is created empty and
// closed; backends write to its path.
func (p OSTempProvider) NewScopedTempFile(prefix, ext string) (*TempFile, error) {
	pattern := prefix + "*"
	if ext != "" {
		pattern += "." + strings.TrimPrefix(ext, ".")
	}

	f, err := os.CreateTemp(p.Dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTempFile, err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return nil, fmt.Errorf("%w: %w", ErrTempFile, err)
	}

	return &TempFile{Path: name, release: func() { os.Remove(name) }}, nil
}
