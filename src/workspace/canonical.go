// Package workspace resolves workspace roots to canonical sharing keys and
// detects the dominant language of a project directory.
package workspace

import (
	"path/filepath"

	"go.lsp.dev/uri"
)

// CanonicalKey normalizes a workspace root path into the key under which
// connections are shared. Two spellings of the same root (relative segments,
// trailing slashes, symlinks) collapse to one key. Paths that do not exist on
// disk are still keyed from their cleaned absolute form, so keys can be
// computed before a project is ever opened.
func CanonicalKey(path string) string {
	if path == "" {
		return ""
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}

	// Best effort: collapse symlinked spellings when the path exists.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	return string(uri.File(abs))
}

// KeyToPath converts a canonical key back into a filesystem path for display.
func KeyToPath(key string) string {
	if key == "" {
		return ""
	}
	return uri.URI(key).Filename()
}
