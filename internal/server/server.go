// Package server serves a site directory over HTTP with live reload. HTML
// responses get a small client script that listens on a websocket; rebuilt
// stylesheets are swapped in place and any other change reloads the page.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sitepipe/sitepipe/internal/config"
	pipelineerrors "github.com/sitepipe/sitepipe/internal/errors"
	"github.com/sitepipe/sitepipe/internal/logging"
	"github.com/sitepipe/sitepipe/internal/task"
)

// Task names of the three servers.
const (
	AppTask    = "app-server"
	DistTask   = "dist-server"
	DeployTask = "deploy-server"
)

// Server is a live-reloading static file server.
type Server struct {
	name    string
	baseDir string
	cfg     config.ServerConfig
	hub     *Hub
	errs    *pipelineerrors.ErrorCollector
	open    func(browser, url string) error
	logger  logging.Logger

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	cancel     context.CancelFunc
	ctx        context.Context
}

// Option configures a Server.
type Option func(*Server)

// WithErrors shows the collector's build errors in the browser overlay.
func WithErrors(ec *pipelineerrors.ErrorCollector) Option {
	return func(s *Server) { s.errs = ec }
}

// WithBrowserOpener replaces the function used to open the browser.
func WithBrowserOpener(fn func(browser, url string) error) Option {
	return func(s *Server) { s.open = fn }
}

// New creates a server for baseDir, an OS path.
func New(name, baseDir string, cfg config.ServerConfig, logger logging.Logger, opts ...Option) *Server {
	logger = logger.WithComponent(name)
	s := &Server{
		name:    name,
		baseDir: baseDir,
		cfg:     cfg,
		hub:     NewHub(logger),
		open:    OpenBrowser,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router serving the site, the live-reload socket and
// the client script.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogging)

	r.Get(socketPath, s.handleSocket)
	r.Get(scriptPath, s.handleScript)
	r.Get(errorsPath, s.handleErrors)
	r.Get("/*", s.handleStatic)
	r.Head("/*", s.handleStatic)
	return r
}

// Listen binds the configured address. Port 0 picks a free port.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("%s already listening on %s", s.name, s.listener.Addr())
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return pipelineerrors.NetworkError(s.name, addr, "listening", err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}
	go s.hub.Run(s.ctx)
	return nil
}

// Serve handles requests until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	srv, ln := s.httpServer, s.listener
	s.mu.Unlock()
	if srv == nil {
		return fmt.Errorf("%s: Serve called before Listen", s.name)
	}

	s.logger.Info(s.ctx, "Serving", "dir", s.baseDir, "url", s.URL())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}

// Start listens, serves in the session's background and registers the
// server for reload events and shutdown. The browser is opened when
// configured.
func (s *Server) Start(ctx context.Context, session *task.Session) error {
	if err := s.Listen(); err != nil {
		return err
	}
	session.Go(s.Serve)
	session.OnShutdown(s.name, s.Shutdown)
	session.AddReloader(s)

	if s.cfg.Open {
		if err := s.open(s.cfg.Browser, s.URL()); err != nil {
			s.logger.Warn(ctx, err, "Could not open browser", "browser", s.cfg.Browser)
		}
	}
	return nil
}

// Shutdown stops accepting requests and disconnects live-reload clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, cancel := s.httpServer, s.cancel
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	cancel()
	return srv.Shutdown(ctx)
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return "http://" + s.Addr() + "/"
}

// Hub returns the live-reload hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Reload implements task.Reloader.
func (s *Server) Reload(paths []string, cssOnly bool) {
	msg := Message{Type: MessageReload, Paths: paths}
	if cssOnly {
		msg.Type = MessageCSS
		msg.Errors = s.errorLines()
	}
	s.hub.Broadcast(msg)
}

func (s *Server) errorLines() []string {
	if s.errs == nil {
		return nil
	}
	var lines []string
	for _, be := range s.errs.GetErrors() {
		if be.Severity == pipelineerrors.ErrorSeverityError {
			lines = append(lines, be.Error())
		}
	}
	return lines
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{s.cfg.Host + ":*", "localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Debug(r.Context(), "WebSocket upgrade failed", "error", err.Error())
		return
	}
	s.hub.serve(r.Context(), conn)
}

func (s *Server) handleScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	io.WriteString(w, clientScript)
}

func (s *Server) handleErrors(w http.ResponseWriter, _ *http.Request) {
	lines := s.errorLines()
	if lines == nil {
		lines = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(lines)
}

// handleStatic serves files from baseDir. HTML documents get the
// live-reload script; everything else goes through http.FileServer.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	dir := http.Dir(s.baseDir)
	name := path.Clean("/" + r.URL.Path)

	f, err := dir.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	info, err := f.Stat()
	f.Close()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		name = path.Join(name, "index.html")
	}

	if !isHTML(name) {
		w.Header().Set("Cache-Control", "no-cache")
		http.FileServer(dir).ServeHTTP(w, r)
		return
	}

	doc, err := readFile(dir, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	w.Write(injectScript(doc))
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"size", ww.BytesWritten(),
		)
	})
}

func isHTML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".html" || ext == ".htm"
}

func readFile(dir http.Dir, name string) ([]byte, error) {
	f, err := dir.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", name)
	}
	return io.ReadAll(f)
}
