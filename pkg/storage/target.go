package storage

import (
	"path"
	"path/filepath"
	"strings"
)

// DefaultExtension is used when an image URL carries no usable extension
const DefaultExtension = ".png"

// maxExtensionLength includes the leading dot
const maxExtensionLength = 5

// Extension returns the file extension of the URL's path, ignoring any
// query string or fragment. It falls back to DefaultExtension when the path
// has no extension or one longer than five characters including the dot.
func Extension(rawURL string) string {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	base := path.Base(p)
	ext := path.Ext(base)
	if ext == base || ext == "." || ext == "" || len(ext) > maxExtensionLength {
		return DefaultExtension
	}
	return ext
}

// TargetPath returns the local file path for an image: <dir>/<id><ext>.
// It is a pure function of its inputs.
func TargetPath(dir, id, rawURL string) string {
	return filepath.Join(dir, safeName(id)+Extension(rawURL))
}

// safeName keeps an id from escaping the output directory
func safeName(id string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "\x00", "_").Replace(id)
	if name == "." || name == ".." {
		name = strings.Repeat("_", len(name))
	}
	return name
}
