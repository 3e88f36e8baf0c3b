// Package fileutil provides file and path utility functions.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for file utility operations.
var (
	ErrEmptyPath     = errors.New("path cannot be empty")
	ErrAbsolutePath  = errors.New("path must be relative")
	ErrPathTraversal = errors.New("path escapes base directory")
)

// WriteFileAtomic writes data to a temporary file in the destination
// directory, syncs it, then renames it over path. Readers never observe a
// partially written file, and the rename only happens once the data is on disk.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		cleanup()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// ResolveWithin joins a forward-slash relative path onto base and checks
// that the result stays inside base.
//
// Examples:
//   - ("/site", "a.html") -> "/site/a.html"
//   - ("/site", "sub/b.html") -> "/site/sub/b.html"
//   - ("/site", "../etc/passwd") -> ErrPathTraversal
//   - ("/site", "/etc/passwd") -> ErrAbsolutePath
func ResolveWithin(base, rel string) (string, error) {
	if rel == "" {
		return "", ErrEmptyPath
	}
	if strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q", ErrAbsolutePath, rel)
	}

	cleanBase := filepath.Clean(base)
	joined := filepath.Join(cleanBase, filepath.FromSlash(rel))

	relToBase, err := filepath.Rel(cleanBase, joined)
	if err != nil || relToBase == "." || relToBase == ".." || strings.HasPrefix(relToBase, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, rel)
	}
	return joined, nil
}

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirWritable reports whether a file can be created in dir.
func DirWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".html2preview-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
