// Package upload publishes the deploy tree to an FTP server. Only files that
// are missing remotely or older there than locally are transferred; nothing
// is ever deleted on the remote side.
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/jlaffaye/ftp"
	"golang.org/x/sync/errgroup"

	"github.com/sitepipe/sitepipe/internal/config"
	pipelineerrors "github.com/sitepipe/sitepipe/internal/errors"
	"github.com/sitepipe/sitepipe/internal/fileset"
	"github.com/sitepipe/sitepipe/internal/logging"
)

// TaskName is the name of the upload task.
const TaskName = "upload"

// Client is the subset of an FTP connection the uploader needs.
// *ftp.ServerConn satisfies it.
type Client interface {
	List(path string) ([]*ftp.Entry, error)
	MakeDir(path string) error
	Stor(path string, r io.Reader) error
	Quit() error
}

// Dialer opens a logged-in connection.
type Dialer func(ctx context.Context, cfg config.UploadConfig) (Client, error)

// DialFTP connects to cfg.Addr() and logs in.
func DialFTP(ctx context.Context, cfg config.UploadConfig) (Client, error) {
	opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if cfg.Timeout > 0 {
		opts = append(opts, ftp.DialWithTimeout(cfg.Timeout))
	}
	c, err := ftp.Dial(cfg.Addr(), opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Login(cfg.User, cfg.Password); err != nil {
		_ = c.Quit()
		return nil, fmt.Errorf("login as %s: %w", cfg.User, err)
	}
	return c, nil
}

// Transfer is one file scheduled for upload.
type Transfer struct {
	Local  string
	Remote string
	Size   int64
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithDialer replaces the FTP dialer.
func WithDialer(d Dialer) Option {
	return func(u *Uploader) { u.dial = d }
}

// Uploader mirrors the local source tree onto the remote path.
type Uploader struct {
	root   string
	cfg    config.UploadConfig
	dial   Dialer
	logger logging.Logger
}

// New creates an Uploader for the tree cfg.Source under root.
func New(root string, cfg config.UploadConfig, logger logging.Logger, opts ...Option) *Uploader {
	u := &Uploader{
		root:   root,
		cfg:    cfg,
		dial:   DialFTP,
		logger: logger.WithComponent(TaskName),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Run uploads every newer file.
func (u *Uploader) Run(ctx context.Context) error {
	if u.cfg.Host == "" {
		return pipelineerrors.ConfigurationError("upload.host", "no FTP host configured")
	}

	c, err := u.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Quit()

	tree := newRemoteTree(c)
	pending, err := u.plan(ctx, tree)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		u.logger.Info(ctx, "Remote is up to date", "remote", u.cfg.RemotePath)
		return nil
	}

	for _, dir := range dirsOf(pending) {
		if err := tree.ensure(dir); err != nil {
			return pipelineerrors.NetworkError(TaskName, dir, "creating remote directory", err)
		}
	}

	if err := u.transfer(ctx, c, pending); err != nil {
		return err
	}
	u.logger.Info(ctx, "Upload complete", "files", len(pending), "remote", u.cfg.RemotePath)
	return nil
}

// Plan returns the files Run would transfer without uploading anything.
func (u *Uploader) Plan(ctx context.Context) ([]Transfer, error) {
	c, err := u.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Quit()
	return u.plan(ctx, newRemoteTree(c))
}

func (u *Uploader) connect(ctx context.Context) (Client, error) {
	u.logger.Debug(ctx, "Connecting",
		"addr", u.cfg.Addr(),
		"user", u.cfg.User,
		"password", logging.SanitizeForLog("password", u.cfg.Password),
	)
	c, err := u.dial(ctx, u.cfg)
	if err != nil {
		return nil, pipelineerrors.NetworkError(TaskName, u.cfg.Addr(), "connecting", err)
	}
	return c, nil
}

func (u *Uploader) plan(ctx context.Context, tree *remoteTree) ([]Transfer, error) {
	files, err := fileset.Select(u.root, []string{path.Join(u.cfg.Source, "**", "*")}, nil)
	if err != nil {
		return nil, err
	}

	var pending []Transfer
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		local := f.OSPath(u.root)
		info, err := os.Stat(local)
		if err != nil {
			return nil, pipelineerrors.FileOperationError(TaskName, f.Path, "reading file info", err)
		}

		remote := path.Join(u.cfg.RemotePath, f.Rel)
		entry, err := tree.lookup(remote)
		if err != nil {
			return nil, pipelineerrors.NetworkError(TaskName, path.Dir(remote), "listing remote directory", err)
		}
		if entry != nil && !info.ModTime().After(entry.Time) {
			u.logger.Debug(ctx, "Skipping unchanged file", "file", f.Rel)
			continue
		}
		pending = append(pending, Transfer{Local: local, Remote: remote, Size: info.Size()})
	}
	return pending, nil
}

// transfer stores pending files over at most cfg.Parallel connections. The
// planning connection c is reused as the first worker connection.
func (u *Uploader) transfer(ctx context.Context, c Client, pending []Transfer) error {
	limit := u.cfg.Parallel
	if limit < 1 {
		limit = 1
	}

	p := &pool{
		idle: make(chan Client, limit),
		dial: func() (Client, error) { return u.connect(ctx) },
	}
	p.idle <- c
	defer p.close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, t := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			conn, err := p.get()
			if err != nil {
				return err
			}
			defer p.put(conn)
			return u.store(gctx, conn, t)
		})
	}
	return g.Wait()
}

func (u *Uploader) store(ctx context.Context, c Client, t Transfer) error {
	f, err := os.Open(t.Local)
	if err != nil {
		return pipelineerrors.FileOperationError(TaskName, t.Local, "opening file", err)
	}
	defer f.Close()

	if err := c.Stor(t.Remote, f); err != nil {
		return pipelineerrors.NetworkError(TaskName, t.Remote, "storing file", err)
	}
	u.logger.Info(ctx, "Uploaded file", "remote", t.Remote, "bytes", t.Size)
	return nil
}

// dirsOf returns the distinct parent directories of pending, parents first.
func dirsOf(pending []Transfer) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, t := range pending {
		dir := path.Dir(t.Remote)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// pool hands out connections. The errgroup limit bounds how many are open.
type pool struct {
	idle chan Client
	dial func() (Client, error)

	mu  sync.Mutex
	all []Client
}

func (p *pool) get() (Client, error) {
	select {
	case c := <-p.idle:
		return c, nil
	default:
	}
	c, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.all = append(p.all, c)
	p.mu.Unlock()
	return c, nil
}

func (p *pool) put(c Client) {
	p.idle <- c
}

// close quits the connections dialed by the pool. The planning connection
// is owned by Run.
func (p *pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.all {
		_ = c.Quit()
	}
	p.all = nil
}
