package common

import (
	"os"
	"path/filepath"
)

func CacheDir() string {
	return filepath.Join(cacheHome(), "wsterm")
}

// DefaultClientLogPath is where `wsterm connect` writes diagnostics when no
// --log-file is given. The terminal itself is the surface, so stderr is not
// an option while a session is attached.
func DefaultClientLogPath() string {
	return filepath.Join(CacheDir(), "connect.log")
}

// https://specifications.freedesktop.org/basedir/latest/#variables
func cacheHome() string {
	dir := os.Getenv("XDG_CACHE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".cache")
	}
	return dir
}
