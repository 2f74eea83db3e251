package transform

import (
	"path"
	"strconv"
	"strings"
)

// ChangeExtension replaces the extension of the final element of p with ext.
// The extension is the text after the last dot of the file name; a leading
// dot (".htaccess") is not an extension. Dots left dangling in front of the
// old extension are dropped, and a name without an extension gets ext
// appended. Directory names are never touched.
func ChangeExtension(p, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	dir, file := path.Split(p)

	stem := file
	if i := strings.LastIndexByte(file, '.'); i > 0 {
		stem = file[:i]
	}
	if trimmed := strings.TrimRight(stem, "."); trimmed != "" {
		stem = trimmed
	}

	return dir + stem + "." + ext
}

// DeriveFullPath returns the public zone path of a full size rendition:
// "<dirName>/<sourceRel with ext>".
func DeriveFullPath(sourceRel, dirName, ext string) string {
	return joinRel(dirName, ChangeExtension(sourceRel, ext))
}

// DeriveThumbPath returns the thumb zone path of a thumbnail rendition:
// "<dirName>/<hashPath>/<width>px-<sourceName with ext>".
func DeriveThumbPath(sourceName, hashPath string, width int, dirName, ext string) string {
	return joinRel(dirName, hashPath, ThumbName(sourceName, width, ext))
}

// ThumbName returns the width prefixed file name of a thumbnail rendition.
func ThumbName(sourceName string, width int, ext string) string {
	return strconv.Itoa(width) + "px-" + ChangeExtension(sourceName, ext)
}

// joinRel joins path segments with single slashes, ignoring empty segments
// and surrounding slashes.
func joinRel(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}
