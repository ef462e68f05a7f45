// Package pipeline registers the site build tasks with a task.Runner and
// owns the components behind them.
package pipeline

import (
	"context"
	"path/filepath"

	"github.com/viant/afs"

	"github.com/sitepipe/sitepipe/internal/assemble"
	"github.com/sitepipe/sitepipe/internal/config"
	pipelineerrors "github.com/sitepipe/sitepipe/internal/errors"
	"github.com/sitepipe/sitepipe/internal/logging"
	"github.com/sitepipe/sitepipe/internal/markup"
	"github.com/sitepipe/sitepipe/internal/notify"
	"github.com/sitepipe/sitepipe/internal/server"
	"github.com/sitepipe/sitepipe/internal/style"
	"github.com/sitepipe/sitepipe/internal/task"
	"github.com/sitepipe/sitepipe/internal/upload"
	"github.com/sitepipe/sitepipe/internal/watcher"
)

// Task names owned by this package.
const (
	CleanTask   = "clean"
	DefaultTask = "default"
	BuildTask   = "build"
	DeployTask  = "deploy"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNotifier overrides the notifier chosen from notify.enabled.
func WithNotifier(n notify.Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithTranspiler replaces the dart-sass transpiler.
func WithTranspiler(t style.Transpiler) Option {
	return func(p *Pipeline) { p.transpiler = t }
}

// WithDialer replaces the FTP dialer.
func WithDialer(d upload.Dialer) Option {
	return func(p *Pipeline) { p.dialer = d }
}

// WithBrowserOpener replaces the browser opener of every server.
func WithBrowserOpener(fn func(browser, url string) error) Option {
	return func(p *Pipeline) { p.opener = fn }
}

// Pipeline is the configured task graph for one project.
type Pipeline struct {
	root    string
	cfg     *config.Config
	session *task.Session
	runner  *task.Runner
	errs    *pipelineerrors.ErrorCollector
	fs      afs.Service
	logger  logging.Logger

	notifier   notify.Notifier
	transpiler style.Transpiler
	dialer     upload.Dialer
	opener     func(browser, url string) error

	style   *style.Compiler
	markup  *markup.Renderer
	servers map[string]*server.Server
	watcher *watcher.TaskWatcher
	dist    *assemble.Assembler
	deploy  *assemble.Assembler
	upload  *upload.Uploader
}

// New builds every component for the project at root and registers the
// tasks. Long-running services started by a run attach to session.
func New(root string, cfg *config.Config, session *task.Session, logger logging.Logger, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		root:    root,
		cfg:     cfg,
		session: session,
		runner:  task.NewRunner(logger),
		errs:    pipelineerrors.NewErrorCollector(),
		fs:      afs.New(),
		logger:  logger.WithComponent("pipeline"),
		servers: make(map[string]*server.Server),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.notifier == nil {
		if cfg.Notify.Enabled {
			p.notifier = notify.NewDesktop(logger)
		} else {
			p.notifier = notify.NewLog(logger)
		}
	}

	if err := p.build(logger); err != nil {
		return nil, err
	}
	if err := p.runner.Register(p.tasks()...); err != nil {
		return nil, err
	}
	if err := p.runner.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) build(logger logging.Logger) error {
	styleOpts := []style.Option{
		style.WithNotifier(p.notifier),
		style.WithCollector(p.errs),
		style.WithReloader(p.session),
	}
	if p.transpiler != nil {
		styleOpts = append(styleOpts, style.WithTranspiler(p.transpiler))
	}
	compiler, err := style.New(p.root, p.cfg.Style, logger, styleOpts...)
	if err != nil {
		return pipelineerrors.ConfigurationError("style.targets", err.Error())
	}
	p.style = compiler

	p.markup = markup.New(p.root, p.cfg.Markup, logger,
		markup.WithNotifier(p.notifier),
		markup.WithCollector(p.errs),
		markup.WithReloader(p.session),
	)

	serverOpts := []server.Option{server.WithErrors(p.errs)}
	if p.opener != nil {
		serverOpts = append(serverOpts, server.WithBrowserOpener(p.opener))
	}
	for name, dir := range map[string]string{
		server.AppTask:    p.cfg.Paths.App,
		server.DistTask:   p.cfg.Paths.Dist,
		server.DeployTask: p.cfg.Paths.Deploy,
	} {
		p.servers[name] = server.New(name, p.path(dir), p.cfg.Server, logger, serverOpts...)
	}

	rules := watcher.Rules(p.cfg.Watch, style.TaskName, markup.TaskName)
	p.watcher = watcher.NewTaskWatcher(p.root, p.cfg.Watch.Debounce, rules, p.runner, logger)

	p.dist = assemble.NewDist(p.root, p.cfg, logger)
	deploy, err := assemble.NewDeploy(p.root, p.cfg, logger)
	if err != nil {
		return err
	}
	p.deploy = deploy

	var uploadOpts []upload.Option
	if p.dialer != nil {
		uploadOpts = append(uploadOpts, upload.WithDialer(p.dialer))
	}
	p.upload = upload.New(p.root, p.cfg.Upload, logger, uploadOpts...)
	return nil
}

func (p *Pipeline) tasks() []task.Task {
	compile := []string{style.TaskName, markup.TaskName}
	return []task.Task{
		{
			Name:        CleanTask,
			Description: "Delete the dist and deploy folders",
			Run:         p.Clean,
		},
		{
			Name:        style.TaskName,
			Description: "Compile Sass entries to prefixed, combed CSS",
			Deps:        []string{CleanTask},
			Run:         p.style.Run,
		},
		{
			Name:        markup.TaskName,
			Description: "Render page templates to HTML",
			Deps:        []string{CleanTask},
			Run:         p.markup.Run,
		},
		{
			Name:        server.AppTask,
			Description: "Serve the app folder with live reload",
			Run:         p.startServer(server.AppTask),
		},
		{
			Name:        watcher.TaskName,
			Description: "Recompile styles and markup on change",
			Deps:        []string{style.TaskName, markup.TaskName, server.AppTask},
			Run: func(ctx context.Context) error {
				return p.watcher.Start(ctx, p.session)
			},
		},
		{
			Name:        assemble.DistTask,
			Description: "Assemble the dist folder",
			Run:         p.dist.Run,
		},
		{
			Name:        server.DistTask,
			Description: "Serve the dist folder",
			Run:         p.startServer(server.DistTask),
		},
		{
			Name:        assemble.DeployTask,
			Description: "Assemble the minified deploy folder",
			Run:         p.deploy.Run,
		},
		{
			Name:        server.DeployTask,
			Description: "Serve the deploy folder",
			Run:         p.startServer(server.DeployTask),
		},
		{
			Name:        upload.TaskName,
			Description: "Upload newer deploy files over FTP",
			Deps:        []string{assemble.DeployTask},
			Run:         p.upload.Run,
		},
		{
			Name:        DefaultTask,
			Description: "Compile, serve the app folder and watch for changes",
			Deps:        compile,
			Then:        []string{watcher.TaskName, server.AppTask},
		},
		{
			Name:        BuildTask,
			Description: "Compile, assemble and serve the dist folder",
			Deps:        compile,
			Then:        []string{assemble.DistTask, server.DistTask},
		},
		{
			Name:        DeployTask,
			Description: "Compile, assemble and serve the deploy folder",
			Deps:        compile,
			Then:        []string{assemble.DeployTask, server.DeployTask},
		},
	}
}

func (p *Pipeline) startServer(name string) task.Func {
	return func(ctx context.Context) error {
		return p.servers[name].Start(ctx, p.session)
	}
}

// Runner returns the task runner.
func (p *Pipeline) Runner() *task.Runner {
	return p.runner
}

// Session returns the session background services attach to.
func (p *Pipeline) Session() *task.Session {
	return p.session
}

// Server returns the server registered under a server task name.
func (p *Pipeline) Server(name string) *server.Server {
	return p.servers[name]
}

// Errors returns the collector shared by the compilers and servers.
func (p *Pipeline) Errors() *pipelineerrors.ErrorCollector {
	return p.errs
}

// Run executes the named tasks.
func (p *Pipeline) Run(ctx context.Context, names ...string) error {
	return p.runner.Run(ctx, names...)
}

// Clean removes the dist and deploy folders. Missing folders are fine.
func (p *Pipeline) Clean(ctx context.Context) error {
	for _, dir := range []string{p.cfg.Paths.Dist, p.cfg.Paths.Deploy} {
		target := p.path(dir)
		exists, err := p.fs.Exists(ctx, target)
		if err != nil {
			return pipelineerrors.FileOperationError(CleanTask, dir, "checking folder", err)
		}
		if !exists {
			continue
		}
		if err := p.fs.Delete(ctx, target); err != nil {
			return pipelineerrors.FileOperationError(CleanTask, dir, "deleting folder", err)
		}
		p.logger.Info(ctx, "Deleted folder", "dir", dir)
	}
	return nil
}

// Close releases the Sass compiler.
func (p *Pipeline) Close() error {
	return p.style.Close()
}

func (p *Pipeline) path(rel string) string {
	return filepath.Join(p.root, filepath.FromSlash(rel))
}
