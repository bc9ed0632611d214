package util

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading ~/ in path to the current user's home
// directory. Paths without the prefix are returned unchanged, as are
// ~user forms, which only a shell can resolve.
func ExpandHome(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
