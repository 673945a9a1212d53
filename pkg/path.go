package pkg

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Prefix returns the identifier used to name the configuration and cache
// directories and to prefix environment variables.
//
// The identifier is the executable's base name with its extension removed.
// Two substitutions keep development builds sane: the dlv debugger's
// "__debug_bin<pid>" output maps to the project name, and leading dots are
// stripped.
//
//nolint:gochecknoglobals
var Prefix = sync.OnceValue(
	func() string {
		id := os.Args[0]
		if exe, err := os.Executable(); err == nil {
			id = exe
		}

		id = filepath.Base(id)
		id = strings.TrimSuffix(id, filepath.Ext(id))
		id = strings.TrimLeft(id, ".")

		if name, ok := strings.CutPrefix(id, "__debug_bin"); ok {
			if name == "" || strings.IndexFunc(name, notDigit) < 0 {
				id = Name
			}
		}

		return id
	},
)

func notDigit(r rune) bool { return r < '0' || r > '9' }

// ConfigDir returns the per-user configuration directory path.
//
//nolint:gochecknoglobals
var ConfigDir = sync.OnceValue(
	func() string {
		return userDir(os.UserConfigDir, ".config")
	},
)

// CacheDir returns the per-user cache directory path for transient files
// such as profiler output and session history.
//
//nolint:gochecknoglobals
var CacheDir = sync.OnceValue(
	func() string {
		return userDir(os.UserCacheDir, ".cache")
	},
)

// userDir resolves a per-user base directory, falling back to a dot
// directory under $HOME and finally to the working directory, then appends
// the project prefix.
func userDir(lookup func() (string, error), dotDir string) string {
	dir, err := lookup()
	if err != nil {
		if home, herr := os.UserHomeDir(); herr == nil {
			dir = filepath.Join(home, dotDir)
		} else if dir, err = os.Getwd(); err != nil {
			dir = "."
		}
	}

	return filepath.Join(dir, Prefix())
}
