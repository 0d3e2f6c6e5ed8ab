package corpus

import (
	"path/filepath"
	"strings"
)

// MatchesAny reports whether path matches any of the glob patterns.
// A leading "**/" matches at any depth and a trailing "/**" matches
// everything below a directory.
func MatchesAny(path string, patterns []string) bool {
	path = filepath.ToSlash(path)
	for _, pattern := range patterns {
		if matched, err := filepath.Match(pattern, path); err == nil && matched {
			return true
		}
		if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
			if matchesDir(path, dir) {
				return true
			}
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean == pattern {
			continue
		}
		if matched, err := filepath.Match(clean, filepath.Base(path)); err == nil && matched {
			return true
		}
		if matched, err := filepath.Match(clean, path); err == nil && matched {
			return true
		}
		if dir, ok := strings.CutSuffix(clean, "/**"); ok {
			// "**/dist/**" matches any path with a "dist" component.
			parts := strings.Split(path, "/")
			for _, p := range parts[:len(parts)-1] {
				if matched, err := filepath.Match(dir, p); err == nil && matched {
					return true
				}
			}
		}
	}
	return false
}

func matchesDir(path, dir string) bool {
	parts := strings.Split(path, "/")
	dirParts := strings.Split(dir, "/")
	if len(parts) <= len(dirParts) {
		return false
	}
	for i, dp := range dirParts {
		if matched, err := filepath.Match(dp, parts[i]); err != nil || !matched {
			return false
		}
	}
	return true
}
