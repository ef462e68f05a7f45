package assemble

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/sitepipe/sitepipe/internal/fileset"
)

// Asset is a file travelling through an assembler. Content is read lazily,
// so files no stage touches are streamed straight from disk to the output.
type Asset struct {
	// Rel is the output path, slash separated, relative to the output dir.
	Rel string
	// Src is the OS path the asset was read from; empty for generated assets.
	Src string

	content []byte
	loaded  bool
}

// Content returns the asset's bytes, reading them on first use.
func (a *Asset) Content() ([]byte, error) {
	if a.loaded {
		return a.content, nil
	}
	b, err := os.ReadFile(a.Src)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", a.Src, err)
	}
	a.content, a.loaded = b, true
	return b, nil
}

// SetContent replaces the asset's bytes.
func (a *Asset) SetContent(b []byte) {
	a.content, a.loaded = b, true
}

// Loaded reports whether the asset is held in memory.
func (a *Asset) Loaded() bool {
	return a.loaded
}

// Stage is one transform applied to every asset matching Files. Apply may
// return further assets, which continue through the remaining stages.
type Stage struct {
	Name  string
	Files string
	Apply func(ctx context.Context, a *Asset) ([]*Asset, error)
}

// Matches reports whether the stage applies to rel. Patterns without a
// slash match the base name only.
func (s Stage) Matches(rel string) bool {
	if s.Files == "" {
		return true
	}
	if strings.Contains(s.Files, "/") {
		return fileset.Match([]string{s.Files}, rel)
	}
	return fileset.Match([]string{s.Files}, path.Base(rel))
}

// Replace substitutes every literal occurrence of old with repl in matching
// files.
func Replace(files, old, repl string) Stage {
	return Stage{
		Name:  "replace",
		Files: files,
		Apply: func(_ context.Context, a *Asset) ([]*Asset, error) {
			b, err := a.Content()
			if err != nil {
				return nil, err
			}
			a.SetContent([]byte(strings.ReplaceAll(string(b), old, repl)))
			return nil, nil
		},
	}
}
