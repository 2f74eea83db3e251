package filerepo

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	// Header decoders for image.DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// File describes an original upload in the public zone.
type File struct {
	// Title is the page title the file was requested by.
	Title string `json:"title"`
	// Name is the stored file name (normalized title).
	Name string `json:"name"`
	// HashPath is the hashed directory prefix, e.g. "a/ab/".
	HashPath string `json:"hash_path"`
	MimeType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Rel returns the file's path relative to the public zone.
func (f File) Rel() string {
	return f.HashPath + f.Name
}

// NormalizeTitle turns a page title into a stored file name: an optional
// "File:" namespace is removed, spaces become underscores and the first
// letter is upper-cased.
func NormalizeTitle(title string) string {
	name := strings.TrimSpace(title)
	if len(name) > 5 && strings.EqualFold(name[:5], "file:") {
		name = strings.TrimSpace(name[5:])
	}
	name = strings.ReplaceAll(name, " ", "_")

	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// HashPath returns the hashed upload directory for name: for each level one
// directory made of the first 1..levels hex digits of md5(name), each with a
// trailing slash. levels <= 0 returns the empty string.
func HashPath(name string, levels int) string {
	if levels <= 0 {
		return ""
	}
	sum := md5.Sum([]byte(name))
	digest := hex.EncodeToString(sum[:])

	var b strings.Builder
	for i := 1; i <= levels && i <= len(digest); i++ {
		b.WriteString(digest[:i])
		b.WriteByte('/')
	}
	return b.String()
}

// Lookup resolves a title to the File stored in the public zone of repo,
// sniffing its MIME type and reading its pixel size from the image header.
// A missing original yields ErrNotFound.
func Lookup(ctx context.Context, repo Repository, title string, levels int) (*File, error) {
	name := NormalizeTitle(title)
	if name == "" {
		return nil, fmt.Errorf("%w: empty title", ErrNotFound)
	}

	f := &File{
		Title:    title,
		Name:     name,
		HashPath: HashPath(name, levels),
	}

	exists, err := repo.Exists(ctx, ZonePublic, f.Rel())
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", f.Rel(), err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, f.Rel())
	}

	local, release, err := repo.LocalCopy(ctx, ZonePublic, f.Rel())
	if err != nil {
		return nil, err
	}
	defer release()

	mtype, err := mimetype.DetectFile(local)
	if err != nil {
		return nil, fmt.Errorf("failed to detect type of %s: %w", f.Rel(), err)
	}
	f.MimeType = mtype.String()
	if i := strings.IndexByte(f.MimeType, ';'); i >= 0 {
		f.MimeType = f.MimeType[:i]
	}

	if fh, err := os.Open(local); err == nil {
		if cfg, _, err := image.DecodeConfig(fh); err == nil {
			f.Width, f.Height = cfg.Width, cfg.Height
		}
		fh.Close()
	}

	return f, nil
}
