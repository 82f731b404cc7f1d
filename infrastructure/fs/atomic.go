// Package fs provides the two filesystem primitives the orchestrator and
// schema store depend on: atomic (temp-file-plus-rename) writes, and path
// safety checks rooted under the project directory.
package fs

import (
	"os"
	"path/filepath"

	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
)

// WriteAtomic writes data to path by writing to a temp file in the same
// directory and renaming it over path, so the write is never partially
// observable. Parent directories are created as needed.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return verrors.IO("failed to create target directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return verrors.IO("failed to create temp file for atomic write", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return verrors.IO("failed to write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return verrors.IO("failed to sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return verrors.IO("failed to close temp file", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return verrors.IO("failed to set permissions on temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return verrors.IO("failed to rename temp file into place", err)
	}
	return nil
}

// EnsureRooted verifies that path resolves to a location under root, and
// returns the cleaned absolute path. Any attempt to escape root — via
// symlink-free ".." traversal — fails with UnsafePathError (§5).
func EnsureRooted(root, path string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", verrors.IO("failed to resolve project root", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", verrors.IO("failed to resolve path", err)
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || hasDotDotPrefix(rel) {
		return "", verrors.NewUnsafePathError(path, root)
	}
	return absPath, nil
}

func hasDotDotPrefix(rel string) bool {
	if rel == ".." {
		return true
	}
	prefix := ".." + string(filepath.Separator)
	return len(rel) >= len(prefix) && rel[:len(prefix)] == prefix
}
