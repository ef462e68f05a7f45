package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReloader struct {
	mu    sync.Mutex
	calls [][]string
	css   []bool
}

func (f *fakeReloader) Reload(paths []string, cssOnly bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, paths)
	f.css = append(f.css, cssOnly)
}

func TestSessionWaitReturnsOnCancel(t *testing.T) {
	s := NewSession()
	stop := make(chan struct{})
	s.Go(func() error {
		<-stop
		return nil
	})
	s.OnShutdown("stop", func(context.Context) error {
		close(stop)
		return nil
	})
	assert.True(t, s.HasBackground())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Wait(ctx))

	shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	require.NoError(t, s.Shutdown(shutdownCtx))
}

func TestSessionWaitReturnsServiceError(t *testing.T) {
	s := NewSession()
	boom := errors.New("listen: address already in use")
	s.Go(func() error { return boom })

	err := s.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestSessionShutdownOrderAndErrors(t *testing.T) {
	s := NewSession()
	var order []string
	s.OnShutdown("server", func(context.Context) error {
		order = append(order, "server")
		return errors.New("close failed")
	})
	s.OnShutdown("watcher", func(context.Context) error {
		order = append(order, "watcher")
		return nil
	})

	err := s.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server: close failed")
	assert.Equal(t, []string{"watcher", "server"}, order)
	assert.False(t, s.HasBackground())
}

func TestSessionReload(t *testing.T) {
	s := NewSession()
	s.Reload([]string{"ignored.css"}, true)

	r := &fakeReloader{}
	s.AddReloader(r)
	s.Reload([]string{"app/styles/css/main_light.css"}, true)
	s.Reload([]string{"app/index.html"}, false)

	require.Len(t, r.calls, 2)
	assert.Equal(t, []bool{true, false}, r.css)
}
