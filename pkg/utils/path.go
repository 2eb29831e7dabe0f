package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands environment variables and a leading ~ and returns an
// absolute path. An empty path stays empty.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

// EnsureDir expands dir and creates it when missing.
func EnsureDir(dir string) (string, error) {
	expanded, err := ExpandPath(dir)
	if err != nil || expanded == "" {
		return expanded, err
	}
	if err := os.MkdirAll(expanded, 0o750); err != nil {
		return expanded, fmt.Errorf("create %s: %w", expanded, err)
	}
	return expanded, nil
}
