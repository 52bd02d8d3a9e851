// Package helpers provides helper functions commonly registered on adapters.
package helpers

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// Strings returns the string helpers: upper, lower and trim.
func Strings() map[string]any {
	return map[string]any{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"trim":  strings.TrimSpace,
	}
}

// Include returns a helper reading sub-templates from fsys.
func Include(fsys fs.FS) func(name string) (string, error) {
	return func(name string) (string, error) {
		clean := path.Clean(strings.TrimPrefix(name, "/"))
		if !fs.ValidPath(clean) {
			return "", fmt.Errorf("include %q: invalid path", name)
		}
		data, err := fs.ReadFile(fsys, clean)
		if err != nil {
			return "", fmt.Errorf("include %q: %w", name, err)
		}
		return string(data), nil
	}
}

// Standard returns Strings plus an include helper when fsys is not nil.
func Standard(fsys fs.FS) map[string]any {
	out := Strings()
	if fsys != nil {
		out["include"] = Include(fsys)
	}
	return out
}
