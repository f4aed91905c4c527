// Package pathutil provides shared path helpers for job file references.
package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateOutputName validates the name of a file the job writes.
// Uses segment-based detection so that "out/../../etc/x.csv" is rejected before
// cleaning. Returns an error if the name is empty, contains null bytes, has
// ".." in any segment or names a directory.
func ValidateOutputName(name string) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if strings.Contains(name, "\x00") {
		return fmt.Errorf("file name contains invalid characters")
	}

	normalized := filepath.ToSlash(name)
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return fmt.Errorf("file name contains path traversal: %q", name)
		}
	}
	if strings.HasSuffix(normalized, "/") {
		return fmt.Errorf("file name %q names a directory", name)
	}
	return nil
}

// Resolve returns p unchanged when it is absolute, otherwise p joined to baseDir.
// Input references may point outside baseDir, so ".." is allowed here.
func Resolve(baseDir, p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if strings.Contains(p, "\x00") {
		return "", fmt.Errorf("path contains invalid characters")
	}
	if filepath.IsAbs(p) || baseDir == "" {
		return filepath.Clean(p), nil
	}
	return filepath.Join(baseDir, p), nil
}
