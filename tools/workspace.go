package tools

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolvePath maps a tool-supplied path into the workspace root and rejects
// anything that would escape it. Absolute paths are reinterpreted as
// workspace-relative.
func resolvePath(root, path string) (string, error) {
	if path == "" || path == "." {
		return root, nil
	}
	if filepath.IsAbs(path) {
		path = strings.TrimPrefix(path, string(filepath.Separator))
	}

	resolved := filepath.Join(root, path)
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", path)
	}
	return resolved, nil
}
