package html2preview

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover returns the forward-slash paths, relative to rootDir, of every
// regular file matching pattern. Results are sorted and unique.
//
// rootDir is resolved through symlinks first. Matched entries that are
// symlinks are followed and kept only if they point to a regular file.
// Directories are never returned. An empty result is not an error.
func Discover(rootDir, pattern string) ([]string, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, ErrEmptyRootDir)
	}
	if pattern == "" {
		pattern = DefaultGlobPattern
	}

	root, err := filepath.EvalSymlinks(rootDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDiscovery, rootDir)
	}

	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		if !fs.ValidPath(m) {
			continue
		}
		// Stat follows symlinks, WithFilesOnly only looks at the entry itself.
		fi, err := os.Stat(filepath.Join(root, filepath.FromSlash(m)))
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		paths = append(paths, m)
	}

	slices.Sort(paths)
	return slices.Compact(paths), nil
}
