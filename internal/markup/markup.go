// Package markup renders the page templates into HTML. Every page is
// rendered with the shared JSON data file, re-indented, and validated; lint
// findings are reported but never block the output.
package markup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/sitepipe/sitepipe/internal/config"
	"github.com/sitepipe/sitepipe/internal/errors"
	"github.com/sitepipe/sitepipe/internal/fileset"
	"github.com/sitepipe/sitepipe/internal/logging"
	"github.com/sitepipe/sitepipe/internal/notify"
	"github.com/sitepipe/sitepipe/internal/task"
)

// TaskName is the name the renderer is registered under.
const TaskName = "compile-html"

// ErrorTitle is the notification title for render failures.
const ErrorTitle = "Error Compiling HTML"

// Renderer is the compile-html task.
type Renderer struct {
	root      string
	cfg       config.MarkupConfig
	notifier  notify.Notifier
	collector *errors.ErrorCollector
	reloader  task.Reloader
	logger    logging.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithNotifier sets where render errors are reported.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Renderer) { r.notifier = n }
}

// WithCollector records render errors and lint findings.
func WithCollector(ec *errors.ErrorCollector) Option {
	return func(r *Renderer) { r.collector = ec }
}

// WithReloader announces written pages.
func WithReloader(rl task.Reloader) Option {
	return func(r *Renderer) { r.reloader = rl }
}

// New creates the renderer for the project at root.
func New(root string, cfg config.MarkupConfig, logger logging.Logger, opts ...Option) *Renderer {
	r := &Renderer{
		root:      root,
		cfg:       cfg,
		collector: errors.NewErrorCollector(),
		logger:    logger.WithComponent("markup"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.notifier == nil {
		r.notifier = notify.NewLog(logger)
	}
	return r
}

// Page is one rendered page.
type Page struct {
	Source string
	Output string
	HTML   []byte
	Issues []Issue
}

// Run renders every page. Data and template errors are notified and the
// affected pages skipped; write errors fail the task.
func (r *Renderer) Run(ctx context.Context) error {
	r.collector.ClearTask(TaskName)

	data, err := r.LoadData()
	if err != nil {
		r.report(ctx, r.cfg.DataFile, err)
		r.showErrors()
		return nil
	}

	pages, err := fileset.Select(r.root, []string{r.cfg.Pages}, nil)
	if err != nil {
		return errors.FileOperationError(TaskName, r.cfg.Pages, "selecting pages", err)
	}

	// One template set per run so edited partials are picked up.
	set := r.newSet()

	var written []string
	failed := 0
	for _, f := range pages {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		page, err := r.render(set, f, data)
		if err != nil {
			r.report(ctx, f.Path, err)
			failed++
			continue
		}
		r.reportIssues(ctx, page)

		if err := r.write(page); err != nil {
			return err
		}
		written = append(written, page.Output)
		r.logger.Debug(ctx, "Rendered page", "page", f.Path, "output", page.Output)
	}

	r.logger.Info(ctx, "Rendered pages", "count", len(written))
	switch {
	case len(written) > 0 && r.reloader != nil:
		r.reloader.Reload(written, false)
	case failed > 0:
		r.showErrors()
	}
	return nil
}

// showErrors pushes the error overlay to open pages without reloading them.
func (r *Renderer) showErrors() {
	if r.reloader != nil {
		r.reloader.Reload(nil, true)
	}
}

// RenderFile renders a single page without writing it. path is an OS path
// inside the pages directory.
func (r *Renderer) RenderFile(path string) (*Page, error) {
	data, err := r.LoadData()
	if err != nil {
		return nil, err
	}
	rel, err := fileset.Rel(r.root, path)
	if err != nil {
		return nil, err
	}
	pageRel, err := fileset.Rel(filepath.Join(r.root, filepath.FromSlash(fileset.Base(r.cfg.Pages))), path)
	if err != nil {
		return nil, err
	}
	return r.render(r.newSet(), fileset.File{Path: rel, Rel: pageRel}, data)
}

// LoadData reads the data file. A missing file yields an empty context.
func (r *Renderer) LoadData() (pongo2.Context, error) {
	data := pongo2.Context{}
	if r.cfg.DataFile == "" {
		return data, nil
	}
	b, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(r.cfg.DataFile)))
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", r.cfg.DataFile, err)
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", r.cfg.DataFile, err)
	}
	return data, nil
}

// OutputPath maps a page's path relative to the pages dir onto the output
// dir. Nunjucks pages become .html.
func (r *Renderer) OutputPath(rel string) string {
	if strings.EqualFold(filepath.Ext(rel), ".nunjucks") {
		rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ".html"
	}
	return filepath.ToSlash(filepath.Join(filepath.FromSlash(r.cfg.OutputDir), filepath.FromSlash(rel)))
}

// Errors returns the collector holding render errors and lint findings.
func (r *Renderer) Errors() *errors.ErrorCollector {
	return r.collector
}

func (r *Renderer) newSet() *pongo2.TemplateSet {
	loader := newSearchLoader(
		filepath.Join(r.root, filepath.FromSlash(r.cfg.TemplatesDir)),
		filepath.Join(r.root, filepath.FromSlash(r.cfg.PagesDir)),
	)
	return pongo2.NewSet(TaskName, loader)
}

func (r *Renderer) render(set *pongo2.TemplateSet, f fileset.File, data pongo2.Context) (*Page, error) {
	abs, err := filepath.Abs(f.OSPath(r.root))
	if err != nil {
		return nil, err
	}
	tpl, err := set.FromFile(abs)
	if err != nil {
		return nil, err
	}
	out, err := tpl.Execute(data)
	if err != nil {
		return nil, err
	}

	pretty, err := Pretty([]byte(out))
	if err != nil {
		return nil, fmt.Errorf("formatting %s: %w", f.Path, err)
	}

	page := &Page{Source: f.Path, Output: r.OutputPath(f.Rel), HTML: pretty}
	if r.cfg.Lint {
		page.Issues, err = Lint(pretty)
		if err != nil {
			return nil, fmt.Errorf("validating %s: %w", f.Path, err)
		}
	}
	return page, nil
}

func (r *Renderer) write(page *Page) error {
	dst := filepath.Join(r.root, filepath.FromSlash(page.Output))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.FileOperationError(TaskName, page.Output, "creating output directory", err)
	}
	if err := os.WriteFile(dst, page.HTML, 0644); err != nil {
		return errors.FileOperationError(TaskName, page.Output, "writing page", err)
	}
	return nil
}

func (r *Renderer) report(ctx context.Context, file string, err error) {
	r.collector.Add(errors.BuildError{
		Task:     TaskName,
		File:     file,
		Message:  err.Error(),
		Severity: errors.ErrorSeverityError,
	})
	r.notifier.Notify(ctx, ErrorTitle, err)
}

func (r *Renderer) reportIssues(ctx context.Context, page *Page) {
	if len(page.Issues) == 0 {
		return
	}
	for _, issue := range page.Issues {
		r.collector.Add(errors.BuildError{
			Task:     TaskName,
			File:     page.Output,
			Line:     issue.Line,
			Column:   issue.Column,
			Rule:     issue.Rule,
			Message:  issue.Message,
			Severity: errors.ErrorSeverityWarning,
		})
	}
	r.logger.Warn(ctx, nil, "HTML validation issues", "file", page.Output, "count", len(page.Issues))
	for _, issue := range page.Issues {
		r.logger.Info(ctx, issue.String(), "file", page.Output)
	}
}
