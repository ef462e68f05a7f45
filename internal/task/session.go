package task

import (
	"context"
	"errors"
	"sync"
)

// Session owns the long-running services a run leaves behind, such as the
// dev server and the file watcher. Tasks start them and return; the CLI then
// blocks in Wait until interrupted and calls Shutdown.
type Session struct {
	mu        sync.Mutex
	closers   []closer
	running   int
	errs      chan error
	wg        sync.WaitGroup
	reloaders []Reloader
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// Reloader receives notifications about rebuilt files.
type Reloader interface {
	// Reload announces that paths changed. cssOnly means only stylesheets
	// changed and can be swapped without a full page reload.
	Reload(paths []string, cssOnly bool)
}

// NewSession creates an empty Session.
func NewSession() *Session {
	return &Session{errs: make(chan error, 8)}
}

// Go runs fn in the background. A non-nil error from fn ends Wait.
func (s *Session) Go(fn func() error) {
	s.mu.Lock()
	s.running++
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(); err != nil {
			select {
			case s.errs <- err:
			default:
			}
		}
	}()
}

// OnShutdown registers fn to be called by Shutdown, in reverse order of
// registration.
func (s *Session) OnShutdown(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

// HasBackground reports whether any service was started with Go.
func (s *Session) HasBackground() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running > 0
}

// AddReloader registers a live-reload target.
func (s *Session) AddReloader(r Reloader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloaders = append(s.reloaders, r)
}

// Reload forwards to every registered Reloader. It is a no-op when no dev
// server is running.
func (s *Session) Reload(paths []string, cssOnly bool) {
	s.mu.Lock()
	reloaders := append([]Reloader(nil), s.reloaders...)
	s.mu.Unlock()
	for _, r := range reloaders {
		r.Reload(paths, cssOnly)
	}
}

// Wait blocks until ctx is done or a background service fails. Context
// cancellation is a normal exit and returns nil.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-s.errs:
		return err
	}
}

// Shutdown calls the registered closers and waits for background services.
func (s *Session) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(ctx); err != nil {
			errs = append(errs, errors.New(closers[i].name+": "+err.Error()))
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}
