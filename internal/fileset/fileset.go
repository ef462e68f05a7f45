// Package fileset selects source files with gulp-style globs: "**" spans
// directories, "{a,b}" lists alternatives, and every pattern is a slash path
// relative to the project root. The directory part of a pattern before its
// first wildcard is the pattern's base; outputs keep each file's path
// relative to that base.
package fileset

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// File is one selected source file.
type File struct {
	// Path is the slash-separated path relative to the project root.
	Path string
	// Rel is Path relative to the base of the include pattern that selected it.
	Rel string
}

// Ext returns the file extension including the dot.
func (f File) Ext() string {
	return path.Ext(f.Path)
}

// OSPath returns the file's location on disk under root.
func (f File) OSPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(f.Path))
}

// Select returns every regular file under root matching at least one include
// pattern and no exclude pattern, sorted by Path.
func Select(root string, include, exclude []string) ([]File, error) {
	return SelectFS(os.DirFS(root), include, exclude)
}

// SelectFS is Select over an arbitrary filesystem.
func SelectFS(fsys fs.FS, include, exclude []string) ([]File, error) {
	if err := validate(include); err != nil {
		return nil, err
	}
	if err := validate(exclude); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var files []File
	for _, pattern := range include {
		base, _ := doublestar.SplitPattern(pattern)
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, match := range matches {
			if _, ok := seen[match]; ok {
				continue
			}
			if Match(exclude, match) {
				continue
			}
			seen[match] = struct{}{}
			files = append(files, File{Path: match, Rel: relTo(base, match)})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Match reports whether name matches any of patterns.
func Match(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Base returns the static directory prefix of pattern.
func Base(pattern string) string {
	base, _ := doublestar.SplitPattern(pattern)
	return base
}

// Rel converts an OS path under root into the slash form patterns use.
func Rel(root, p string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func relTo(base, p string) string {
	if base == "." || base == "" {
		return p
	}
	if len(p) > len(base) && p[:len(base)] == base && p[len(base)] == '/' {
		return p[len(base)+1:]
	}
	return p
}

func validate(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return nil
}
