package cli

import (
	"os"
	"path/filepath"

	"github.com/ardnew/pyt/pkg"
)

// baseConfig is the base name of the configuration file.
const baseConfig = "config"

// defaultDirMode is the default permission mode for created directories.
var defaultDirMode os.FileMode = 0o700

// configPath returns the absolute path to a file or directory formed by
// joining the configuration directory path with the given path elements.
func configPath(elem ...string) string {
	return filepath.Join(append([]string{pkg.ConfigDir()}, elem...)...)
}

// mkdirAllRequired creates all required runtime directories.
func mkdirAllRequired() error {
	if err := os.MkdirAll(pkg.ConfigDir(), defaultDirMode); err != nil {
		return err
	}

	return os.MkdirAll(pkg.CacheDir(), defaultDirMode)
}
