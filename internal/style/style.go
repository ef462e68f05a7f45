// Package style compiles the Sass entry files into CSS: dart-sass, then
// vendor prefixing, then declaration ordering, then an inline source map.
// Compile errors are reported through a Notifier and never fail the task, so
// a watcher keeps running while a stylesheet is broken.
package style

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sitepipe/sitepipe/internal/config"
	"github.com/sitepipe/sitepipe/internal/errors"
	"github.com/sitepipe/sitepipe/internal/logging"
	"github.com/sitepipe/sitepipe/internal/notify"
	"github.com/sitepipe/sitepipe/internal/task"
)

// TaskName is the name the compiler is registered under.
const TaskName = "compile-sass"

// ErrorTitle is the notification title for compile failures.
const ErrorTitle = "Error Compiling Sass"

// Compiler is the compile-sass task.
type Compiler struct {
	root       string
	cfg        config.StyleConfig
	transpiler Transpiler
	prefixer   *Prefixer
	notifier   notify.Notifier
	collector  *errors.ErrorCollector
	reloader   task.Reloader
	logger     logging.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithTranspiler replaces the dart-sass transpiler.
func WithTranspiler(t Transpiler) Option {
	return func(c *Compiler) { c.transpiler = t }
}

// WithNotifier sets where compile errors are reported.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Compiler) { c.notifier = n }
}

// WithCollector records compile errors for the dev server overlay.
func WithCollector(ec *errors.ErrorCollector) Option {
	return func(c *Compiler) { c.collector = ec }
}

// WithReloader announces written stylesheets.
func WithReloader(r task.Reloader) Option {
	return func(c *Compiler) { c.reloader = r }
}

// New creates the compiler for the project at root.
func New(root string, cfg config.StyleConfig, logger logging.Logger, opts ...Option) (*Compiler, error) {
	prefixer, err := NewPrefixer(cfg.Targets)
	if err != nil {
		return nil, fmt.Errorf("style targets: %w", err)
	}
	c := &Compiler{
		root:      root,
		cfg:       cfg,
		prefixer:  prefixer,
		collector: errors.NewErrorCollector(),
		logger:    logger.WithComponent("style"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transpiler == nil {
		c.transpiler = NewDartSass(cfg.SassBinary, cfg.Timeout, cfg.SourceMap)
	}
	if c.notifier == nil {
		c.notifier = notify.NewLog(logger)
	}
	return c, nil
}

// Run compiles every entry. Sass errors are notified and skipped; only
// filesystem errors on the output side fail the task.
func (c *Compiler) Run(ctx context.Context) error {
	c.collector.ClearTask(TaskName)

	var written []string
	failed := 0
	for _, entry := range c.cfg.Entries {
		css, err := c.CompileFile(ctx, entry)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.report(ctx, entry, err)
			failed++
			continue
		}

		out, err := c.write(entry, css)
		if err != nil {
			return err
		}
		written = append(written, out)
		c.logger.Info(ctx, "Compiled stylesheet", "entry", entry, "output", out, "bytes", len(css))
	}

	// A css message also carries the current errors, so it is sent when
	// every entry failed too.
	if c.reloader != nil && (len(written) > 0 || failed > 0) {
		c.reloader.Reload(written, true)
	}
	return nil
}

// CompileFile runs the whole style pipeline for one entry and returns the
// bytes that would be written.
func (c *Compiler) CompileFile(ctx context.Context, entry string) ([]byte, error) {
	src := filepath.Join(c.root, filepath.FromSlash(entry))
	content, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", entry, err)
	}

	includes := make([]string, 0, len(c.cfg.IncludePaths))
	for _, p := range c.cfg.IncludePaths {
		includes = append(includes, filepath.Join(c.root, filepath.FromSlash(p)))
	}

	res, err := c.transpiler.Transpile(ctx, Source{
		Path:         src,
		Content:      string(content),
		IncludePaths: includes,
	})
	if err != nil {
		return nil, err
	}

	css := res.CSS
	if c.cfg.SourceMap && res.SourceMap != "" {
		css = strings.TrimRight(css, "\n") + "\n" + inlineSourceMap(res.SourceMap)
	}

	prefixed, sourceMap, err := c.prefixer.Prefix(css, filepath.ToSlash(entry))
	if err != nil {
		return nil, fmt.Errorf("autoprefixing %s: %w", entry, err)
	}

	out := strings.TrimRight(Comb(prefixed), "\n") + "\n"
	if c.cfg.SourceMap && sourceMap != "" {
		out += inlineSourceMap(sourceMap)
	}
	return []byte(out), nil
}

// OutputPath returns where entry's CSS is written, relative to the root.
func (c *Compiler) OutputPath(entry string) string {
	name := strings.TrimSuffix(filepath.Base(entry), filepath.Ext(entry)) + ".css"
	return filepath.ToSlash(filepath.Join(filepath.FromSlash(c.cfg.OutputDir), name))
}

// Close releases the transpiler.
func (c *Compiler) Close() error {
	return c.transpiler.Close()
}

func (c *Compiler) write(entry string, css []byte) (string, error) {
	out := c.OutputPath(entry)
	dst := filepath.Join(c.root, filepath.FromSlash(out))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", errors.FileOperationError(TaskName, out, "creating output directory", err)
	}
	if err := os.WriteFile(dst, css, 0644); err != nil {
		return "", errors.FileOperationError(TaskName, out, "writing stylesheet", err)
	}
	return out, nil
}

func (c *Compiler) report(ctx context.Context, entry string, err error) {
	c.collector.Add(errors.BuildError{
		Task:     TaskName,
		File:     entry,
		Message:  err.Error(),
		Severity: errors.ErrorSeverityError,
	})
	c.notifier.Notify(ctx, ErrorTitle, err)
}

// Errors returns the collector holding the latest compile errors.
func (c *Compiler) Errors() *errors.ErrorCollector {
	return c.collector
}

func inlineSourceMap(sourceMap string) string {
	return "/*# sourceMappingURL=data:application/json;charset=utf-8;base64," +
		base64.StdEncoding.EncodeToString([]byte(sourceMap)) + " */\n"
}
