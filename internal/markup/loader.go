package markup

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// searchLoader resolves template names against an ordered list of
// directories. The directory of the including template is tried after the
// configured search path, so a page can include a sibling partial.
type searchLoader struct {
	dirs []string
}

func newSearchLoader(dirs ...string) *searchLoader {
	return &searchLoader{dirs: dirs}
}

// Abs implements pongo2.TemplateLoader.
func (l *searchLoader) Abs(base, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	name = filepath.FromSlash(name)

	candidates := make([]string, 0, len(l.dirs)+1)
	candidates = append(candidates, l.dirs...)
	if base != "" {
		candidates = append(candidates, filepath.Dir(base))
	}
	for _, dir := range candidates {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	if len(l.dirs) > 0 {
		return filepath.Join(l.dirs[0], name)
	}
	return name
}

// Get implements pongo2.TemplateLoader.
func (l *searchLoader) Get(path string) (io.Reader, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return bytes.NewReader(b), nil
}
