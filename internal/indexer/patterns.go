package indexer

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// defaultSkipDirs are directories that are never indexed. These contain
// generated code, dependencies, or version control data.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	".ragd":        true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"target":       true, // Rust/Java build output
}

// validatePatterns checks glob pattern syntax up front so a bad pattern
// fails the run instead of silently matching nothing.
func validatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		probe := strings.ReplaceAll(pattern, "**", "*")
		if _, err := filepath.Match(probe, "test"); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// matchesPattern matches a relative path against one glob pattern: the
// basename for extension-style patterns, the full relative path, and a
// prefix match for directory patterns like "vendor/**".
func matchesPattern(pattern, relPath string) bool {
	if matched, _ := filepath.Match(pattern, filepath.Base(relPath)); matched {
		return true
	}
	if matched, _ := filepath.Match(pattern, relPath); matched {
		return true
	}
	if strings.Contains(pattern, "**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		if prefix != pattern && strings.HasPrefix(relPath, prefix+string(filepath.Separator)) {
			return true
		}
		// "**/*.ext" style: match the suffix portion against the basename.
		if suffix := strings.TrimPrefix(pattern, "**/"); suffix != pattern {
			if matched, _ := filepath.Match(suffix, filepath.Base(relPath)); matched {
				return true
			}
		}
	}
	return false
}

// shouldInclude determines whether a file is indexed under the config's
// pattern and size rules. Excludes take precedence over includes.
func shouldInclude(relPath string, info fs.FileInfo, cfg Config) bool {
	if info.Size() > cfg.MaxFileSize {
		return false
	}
	for _, pattern := range cfg.ExcludePatterns {
		if matchesPattern(pattern, relPath) {
			return false
		}
	}
	if len(cfg.IncludePatterns) > 0 {
		for _, pattern := range cfg.IncludePatterns {
			if matchesPattern(pattern, relPath) {
				return true
			}
		}
		return false
	}
	return true
}
