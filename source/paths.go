// Package source locates and reads diagram source files.
package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects which files ResolveFiles returns from directories and globs.
type Filter struct {
	// Extensions lists accepted file extensions (e.g., [".mmd", ".md"]).
	// Empty accepts every file.
	Extensions []string `yaml:"extensions"`

	// ExcludeDirs lists directory names to skip while walking.
	ExcludeDirs []string `yaml:"exclude_dirs"`
}

// DefaultFilter returns the filter used when none is configured.
func DefaultFilter() Filter {
	return Filter{
		Extensions:  []string{".mmd", ".mermaid", ".md", ".markdown", ".html", ".htm"},
		ExcludeDirs: []string{".git", "node_modules", "vendor"},
	}
}

// Accepts reports whether path has an accepted extension.
func (f Filter) Accepts(path string) bool {
	if len(f.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range f.Extensions {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Excludes reports whether the directory is skipped while walking.
func (f Filter) Excludes(dir string) bool {
	base := filepath.Base(dir)
	for _, e := range f.ExcludeDirs {
		if base == e {
			return true
		}
	}
	return false
}

// ResolveFiles expands patterns to a de-duplicated list of absolute file paths.
//
// A plain file path is returned as-is, whatever its extension. Directories
// are walked recursively. Glob patterns support ** via doublestar; matched
// files and the contents of matched directories are filtered by f.
func ResolveFiles(patterns []string, f Filter) ([]string, error) {
	var resolved []string
	seen := make(map[string]bool)

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			resolved = append(resolved, p)
		}
	}

	for _, pattern := range patterns {
		paths, err := resolvePattern(pattern, f)
		if err != nil {
			return nil, fmt.Errorf("resolve pattern %q: %w", pattern, err)
		}
		for _, p := range paths {
			add(p)
		}
	}

	return resolved, nil
}

func resolvePattern(pattern string, f Filter) ([]string, error) {
	if !containsGlob(pattern) {
		absPath, err := filepath.Abs(pattern)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return []string{absPath}, nil
		}
		return walkDir(absPath, f)
	}

	absPattern, err := filepath.Abs(pattern)
	if err != nil {
		return nil, err
	}

	matches, err := doublestar.FilepathGlob(absPattern)
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}

	var files []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		if info.IsDir() {
			sub, err := walkDir(match, f)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
			continue
		}
		if f.Accepts(match) {
			files = append(files, match)
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no files match pattern: %s", pattern)
	}
	return files, nil
}

// walkDir collects accepted files below root, skipping excluded and hidden
// directories.
func walkDir(root string, f Filter) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			base := d.Name()
			if path != root && (f.Excludes(path) || strings.HasPrefix(base, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if f.Accepts(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func containsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
