// Package fsutil normalizes the intake root paths before watches are placed.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NormalizeRoots absolutizes, expands ~, and deduplicates the intake roots.
// Every root must exist and be a directory.
func NormalizeRoots(roots []string) ([]string, error) {
	seen := make(map[string]struct{}, len(roots))
	normalized := make([]string, 0, len(roots))

	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		expanded, err := ExpandHome(root)
		if err != nil {
			return nil, err
		}
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return nil, fmt.Errorf("resolve root %q: %w", root, err)
		}
		abs = filepath.Clean(abs)

		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("intake root %q: %w", root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("intake root %q is not a directory", root)
		}

		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		normalized = append(normalized, abs)
	}

	if len(normalized) == 0 {
		return nil, fmt.Errorf("no usable intake roots")
	}
	return normalized, nil
}

// ExpandHome rewrites a leading ~ to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~"+string(os.PathSeparator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
