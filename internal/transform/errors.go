package transform

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoSource is returned by the factory when no source file is given.
	ErrNoSource = errors.New("source file is required")
	// ErrInvalidFormat is returned for an unregistered format key.
	ErrInvalidFormat = errors.New("transformer not recognized")
	// ErrUnsupportedMime matches every *UnsupportedMimeError.
	ErrUnsupportedMime = errors.New("unsupported mime type")
	// ErrTempFile is returned when no temp file could be allocated.
	ErrTempFile = errors.New("could not get a new temp file")
)

// UnsupportedMimeError reports a source whose MIME type a format does not
// accept.
type UnsupportedMimeError struct {
	Format    string
	MimeType  string
	Supported []string
}

func (e *UnsupportedMimeError) Error() string {
	return fmt.Sprintf("mimetype %q is not in supported mime for %s: [%s]",
		e.MimeType, e.Format, strings.Join(e.Supported, ", "))
}

// Is makes errors.Is(err, ErrUnsupportedMime) true.
func (e *UnsupportedMimeError) Is(target error) bool {
	return target == ErrUnsupportedMime
}
