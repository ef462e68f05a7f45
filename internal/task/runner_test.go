package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepipe/sitepipe/internal/logging"
)

type recorder struct {
	mu    sync.Mutex
	order []string
	count map[string]int
}

func newRecorder() *recorder {
	return &recorder{count: make(map[string]int)}
}

func (r *recorder) fn(name string) Func {
	return func(ctx context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, name)
		r.count[name]++
		return nil
	}
}

func (r *recorder) index(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

func newTestRunner(t *testing.T, tasks ...Task) *Runner {
	t.Helper()
	r := NewRunner(logging.Nop())
	require.NoError(t, r.Register(tasks...))
	require.NoError(t, r.Validate())
	return r
}

func TestRunOrdersDependencies(t *testing.T) {
	rec := newRecorder()
	r := newTestRunner(t,
		Task{Name: "clean", Run: rec.fn("clean")},
		Task{Name: "sass", Deps: []string{"clean"}, Run: rec.fn("sass")},
		Task{Name: "html", Deps: []string{"clean"}, Run: rec.fn("html")},
		Task{Name: "folder", Run: rec.fn("folder")},
		Task{Name: "build", Deps: []string{"sass", "html"}, Then: []string{"folder"}},
	)

	require.NoError(t, r.Run(context.Background(), "build"))

	assert.Equal(t, 1, rec.count["clean"], "shared dependency runs once")
	assert.Less(t, rec.index("clean"), rec.index("sass"))
	assert.Less(t, rec.index("clean"), rec.index("html"))
	assert.Less(t, rec.index("sass"), rec.index("folder"))
	assert.Less(t, rec.index("html"), rec.index("folder"))
}

func TestRunSiblingsConcurrently(t *testing.T) {
	var inFlight, peak int32
	started := make(chan struct{}, 2)
	release := make(chan struct{})

	body := func(ctx context.Context) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		started <- struct{}{}
		<-release
		atomic.AddInt32(&inFlight, -1)
		return nil
	}

	r := newTestRunner(t,
		Task{Name: "a", Run: body},
		Task{Name: "b", Run: body},
		Task{Name: "both", Deps: []string{"a", "b"}},
	)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), "both") }()

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("siblings did not start concurrently")
		}
	}
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
}

func TestRunFailureStopsDependents(t *testing.T) {
	rec := newRecorder()
	boom := errors.New("boom")
	r := newTestRunner(t,
		Task{Name: "clean", Run: func(context.Context) error { return boom }},
		Task{Name: "sass", Deps: []string{"clean"}, Run: rec.fn("sass")},
	)

	err := r.Run(context.Background(), "sass")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "task clean")
	assert.Zero(t, rec.count["sass"])
}

func TestRunUnknownTask(t *testing.T) {
	r := newTestRunner(t, Task{Name: "clean"})
	err := r.Run(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
		kind  error
	}{
		{"unknown dep", []Task{{Name: "a", Deps: []string{"b"}}}, ErrInvalidGraph},
		{"self loop", []Task{{Name: "a", Deps: []string{"a"}}}, ErrInvalidGraph},
		{"cycle via deps", []Task{
			{Name: "a", Deps: []string{"b"}},
			{Name: "b", Deps: []string{"c"}},
			{Name: "c", Deps: []string{"a"}},
		}, ErrCycleFound},
		{"cycle via then", []Task{
			{Name: "a", Then: []string{"b"}},
			{Name: "b", Deps: []string{"a"}},
		}, ErrCycleFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(logging.Nop())
			require.NoError(t, r.Register(tt.tasks...))
			err := r.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRunner(logging.Nop())
	require.NoError(t, r.Register(Task{Name: "clean"}))
	assert.ErrorIs(t, r.Register(Task{Name: "clean"}), ErrInvalidGraph)
	assert.ErrorIs(t, r.Register(Task{}), ErrInvalidGraph)
}

func TestPlan(t *testing.T) {
	r := newTestRunner(t,
		Task{Name: "clean"},
		Task{Name: "sass", Deps: []string{"clean"}},
		Task{Name: "html", Deps: []string{"clean"}},
		Task{Name: "server"},
		Task{Name: "watch", Deps: []string{"sass", "html", "server"}},
		Task{Name: "default", Deps: []string{"sass", "html"}, Then: []string{"watch", "server"}},
		Task{Name: "unrelated"},
	)

	plan, err := r.Plan("default")
	require.NoError(t, err)
	assert.Equal(t, []string{"clean", "sass", "html", "default", "server", "watch"}, plan)
	assert.NotContains(t, plan, "unrelated")
}

func TestTriggerRunsOnlyTheTask(t *testing.T) {
	rec := newRecorder()
	r := newTestRunner(t,
		Task{Name: "clean", Run: rec.fn("clean")},
		Task{Name: "sass", Deps: []string{"clean"}, Run: rec.fn("sass")},
	)

	require.NoError(t, r.Trigger(context.Background(), "sass"))
	assert.Equal(t, 1, rec.count["sass"])
	assert.Zero(t, rec.count["clean"])
}

func TestTriggerCoalescesOverlappingRuns(t *testing.T) {
	var runs, concurrent, maxConcurrent int32
	entered := make(chan struct{}, 10)
	release := make(chan struct{})

	r := newTestRunner(t, Task{Name: "sass", Run: func(ctx context.Context) error {
		n := atomic.AddInt32(&concurrent, 1)
		if n > atomic.LoadInt32(&maxConcurrent) {
			atomic.StoreInt32(&maxConcurrent, n)
		}
		atomic.AddInt32(&runs, 1)
		entered <- struct{}{}
		<-release
		atomic.AddInt32(&concurrent, -1)
		return nil
	}})

	done := make(chan error, 1)
	go func() { done <- r.Trigger(context.Background(), "sass") }()
	<-entered

	// Three triggers while the first run is in flight fold into one rerun.
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Trigger(context.Background(), "sass"))
	}

	release <- struct{}{}
	<-entered
	release <- struct{}{}
	require.NoError(t, <-done)

	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxConcurrent))
}
