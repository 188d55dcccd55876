// Package pathutil provides path conversion helpers shared by the resolver
// and the CLI.
//
// Architecture pattern: spp resolves include paths to absolute form
// internally for consistent cache keys, while user-facing output (error
// listings, watch logs) uses relative paths for readability. This package is
// the conversion layer between the two representations.
package pathutil

import (
	"path/filepath"
	"strings"
)

// NormalizeInclude rewrites an #include argument into host path form:
// backslash separators (common in shader sources written on Windows) become
// slashes and redundant elements collapse.
func NormalizeInclude(name string) string {
	if name == "" {
		return name
	}
	name = strings.ReplaceAll(name, "\\", "/")
	return filepath.Clean(filepath.FromSlash(name))
}

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already
// relative.
//
// Examples:
//   - ToRelative("/home/user/project/fx/main.fx", "/home/user/project") → "fx/main.fx"
//   - ToRelative("/other/location/common.fxh", "/home/user/project") → "/other/location/common.fxh" (outside root)
//   - ToRelative("fx/main.fx", "/home/user/project") → "fx/main.fx" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		// Conversion failed (e.g., different drives on Windows) - return absolute
		return absPath
	}

	// A ".." prefix means the file is outside the root; the absolute path is
	// clearer in that case
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}

	return relPath
}
