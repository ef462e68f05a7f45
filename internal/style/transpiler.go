package style

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/godartsass/v2"
)

// Source is one Sass entry file.
type Source struct {
	// Path is the entry path as given in configuration.
	Path    string
	Content string
	// IncludePaths are searched by @use and @import.
	IncludePaths []string
}

// Result is compiled CSS with its source map (JSON, possibly empty).
type Result struct {
	CSS       string
	SourceMap string
}

// Transpiler compiles Sass to CSS.
type Transpiler interface {
	Transpile(ctx context.Context, src Source) (Result, error)
	Close() error
}

// DartSass runs dart-sass over its embedded protocol. The process starts on
// first use and is reused for every later compile until Close.
type DartSass struct {
	binary    string
	timeout   time.Duration
	sourceMap bool

	mu         sync.Mutex
	transpiler *godartsass.Transpiler
}

// NewDartSass returns a Transpiler backed by the given dart-sass binary.
func NewDartSass(binary string, timeout time.Duration, sourceMap bool) *DartSass {
	return &DartSass{binary: binary, timeout: timeout, sourceMap: sourceMap}
}

func (d *DartSass) start() (*godartsass.Transpiler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.transpiler != nil {
		return d.transpiler, nil
	}
	t, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: d.binary,
		Timeout:                  d.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("starting dart-sass %q: %w", d.binary, err)
	}
	d.transpiler = t
	return t, nil
}

// Transpile implements Transpiler.
func (d *DartSass) Transpile(ctx context.Context, src Source) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	t, err := d.start()
	if err != nil {
		return Result{}, err
	}

	abs, err := filepath.Abs(src.Path)
	if err != nil {
		return Result{}, err
	}
	includes := append([]string{filepath.Dir(abs)}, src.IncludePaths...)

	res, err := t.Execute(godartsass.Args{
		Source:                  src.Content,
		URL:                     "file://" + filepath.ToSlash(abs),
		SourceSyntax:            godartsass.SourceSyntaxSCSS,
		OutputStyle:             godartsass.OutputStyleExpanded,
		IncludePaths:            includes,
		EnableSourceMap:         d.sourceMap,
		SourceMapIncludeSources: d.sourceMap,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{CSS: res.CSS, SourceMap: res.SourceMap}, nil
}

// Close stops the dart-sass process if it was started.
func (d *DartSass) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.transpiler == nil {
		return nil
	}
	err := d.transpiler.Close()
	d.transpiler = nil
	return err
}
