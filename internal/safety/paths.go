// Package safety provides helpers for confined file storage under the
// upload root.
package safety

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathError is a machine-readable error for storage-boundary violations.
type PathError struct {
	Code    string
	Message string
}

func (e PathError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// InitUploadRoot resolves the absolute upload root, creating it if needed.
func InitUploadRoot(root string) (string, error) {
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		root = filepath.Join(cwd, "static", "uploads")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("abs(root): %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("mkdir upload root: %w", err)
	}
	// Resolve symlinks so later boundary checks are reliable.
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		abs = r
	}
	return abs, nil
}

// ValidateUploadPath resolves name against absRoot and returns an
// absolute path inside the upload root. It rejects absolute inputs,
// parent traversal, and symlink escapes.
func ValidateUploadPath(absRoot, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", PathError{Code: "ERR_PATH_OUTSIDE_ROOT", Message: "absolute paths are not allowed"}
	}

	cleaned := filepath.Clean(name)
	if cleaned == "" || cleaned == "." {
		return "", PathError{Code: "ERR_EMPTY_NAME", Message: "a file name is required"}
	}

	candidate := filepath.Join(absRoot, cleaned)

	// Best-effort symlink resolution: resolve the candidate if it exists,
	// otherwise resolve the deepest existing ancestor and rejoin the leaf
	// so escapes via a symlinked parent are revealed.
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else {
		parent := filepath.Dir(candidate)
		if resolvedParent, err2 := filepath.EvalSymlinks(parent); err2 == nil {
			candidate = filepath.Join(resolvedParent, filepath.Base(candidate))
		}
	}

	rel, err := filepath.Rel(absRoot, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", PathError{Code: "ERR_PATH_OUTSIDE_ROOT", Message: "requested path resolves outside the upload root"}
	}

	return candidate, nil
}
