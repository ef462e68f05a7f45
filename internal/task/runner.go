package task

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sitepipe/sitepipe/internal/logging"
)

// Func is the body of a task.
type Func func(ctx context.Context) error

// Task is a named unit of work in the build graph.
type Task struct {
	Name        string
	Description string
	// Deps complete before Run starts.
	Deps []string
	// Then start once Run has returned, within the same run.
	Then []string
	// Run may be nil for tasks that only compose others.
	Run Func
}

// Runner holds the registered tasks and executes them.
type Runner struct {
	logger logging.Logger

	mu     sync.RWMutex
	tasks  map[string]*Task
	order  []string
	serial map[string]*serialState
}

type serialState struct {
	mu      sync.Mutex
	running bool
	pending bool
}

// NewRunner creates an empty Runner.
func NewRunner(logger logging.Logger) *Runner {
	return &Runner{
		logger: logger.WithComponent("runner"),
		tasks:  make(map[string]*Task),
		serial: make(map[string]*serialState),
	}
}

// Register adds tasks. Names must be non-empty and unique; references are
// checked by Validate once everything is registered.
func (r *Runner) Register(tasks ...Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range tasks {
		t := tasks[i]
		if t.Name == "" {
			return invalidf("task name is required")
		}
		if _, exists := r.tasks[t.Name]; exists {
			return invalidf("duplicate task name: %q", t.Name)
		}
		r.tasks[t.Name] = &t
		r.order = append(r.order, t.Name)
	}
	return nil
}

// Validate rejects references to unknown tasks, self references and cycles.
// Both Deps and Then count as edges: a task waits for either to finish.
func (r *Runner) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		t := r.tasks[name]
		for _, ref := range edges(t) {
			if _, ok := r.tasks[ref]; !ok {
				return invalidf("task %q references unknown task %q", name, ref)
			}
			if ref == name {
				return invalidf("self-loop: %q", name)
			}
		}
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(r.tasks))
	var stack []string
	var visit func(name string) error
	visit = func(name string) error {
		color[name] = grey
		stack = append(stack, name)
		for _, ref := range edges(r.tasks[name]) {
			switch color[ref] {
			case grey:
				start := 0
				for i, n := range stack {
					if n == ref {
						start = i
						break
					}
				}
				path := append(append([]string{}, stack[start:]...), ref)
				return cycleError(path)
			case white:
				if err := visit(ref); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return nil
	}
	for _, name := range r.order {
		if color[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func edges(t *Task) []string {
	out := make([]string, 0, len(t.Deps)+len(t.Then))
	out = append(out, t.Deps...)
	return append(out, t.Then...)
}

// Tasks returns the registered tasks in registration order.
func (r *Runner) Tasks() []Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Task, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.tasks[name])
	}
	return out
}

// Lookup returns the task registered under name.
func (r *Runner) Lookup(name string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Plan returns every task a Run of names would execute, dependencies first.
func (r *Runner) Plan(names ...string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var plan []string
	visited := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		t, ok := r.tasks[name]
		if !ok {
			return unknown(name)
		}
		visited[name] = true
		for _, dep := range t.Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		plan = append(plan, name)
		for _, next := range t.Then {
			if err := visit(next); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// Run executes names concurrently together with everything they reach.
// The first failure cancels the rest of the run.
func (r *Runner) Run(ctx context.Context, names ...string) error {
	for _, name := range names {
		if _, ok := r.Lookup(name); !ok {
			return unknown(name)
		}
	}
	state := &run{runner: r, calls: make(map[string]*call)}
	return state.group(ctx, names)
}

// Trigger runs the body of a single task without its dependencies. Calls for
// the same task never overlap: a trigger arriving while the task is running
// is folded into one follow-up run, and that caller returns nil immediately.
func (r *Runner) Trigger(ctx context.Context, name string) error {
	t, ok := r.Lookup(name)
	if !ok {
		return unknown(name)
	}

	r.mu.Lock()
	st, ok := r.serial[name]
	if !ok {
		st = &serialState{}
		r.serial[name] = st
	}
	r.mu.Unlock()

	st.mu.Lock()
	if st.running {
		st.pending = true
		st.mu.Unlock()
		return nil
	}
	st.running = true
	st.mu.Unlock()

	for {
		err := r.invoke(ctx, &t)

		st.mu.Lock()
		if !st.pending || ctx.Err() != nil {
			st.running = false
			st.pending = false
			st.mu.Unlock()
			return err
		}
		st.pending = false
		st.mu.Unlock()
	}
}

func (r *Runner) invoke(ctx context.Context, t *Task) error {
	if t.Run == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	op := logging.StartOperation(r.logger.With("task", t.Name), "task")
	op.Debug(ctx, "Starting task")
	if err := t.Run(ctx); err != nil {
		op.EndWithError(ctx, err)
		return fmt.Errorf("task %s: %w", t.Name, err)
	}
	op.End(ctx)
	return nil
}

type call struct {
	done chan struct{}
	err  error
}

// run memoizes task executions for one Runner.Run.
type run struct {
	runner *Runner
	mu     sync.Mutex
	calls  map[string]*call
}

func (s *run) exec(ctx context.Context, name string) error {
	s.mu.Lock()
	if c, ok := s.calls[name]; ok {
		s.mu.Unlock()
		select {
		case <-c.done:
			return c.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	s.calls[name] = c
	s.mu.Unlock()

	c.err = s.execute(ctx, name)
	close(c.done)
	return c.err
}

func (s *run) execute(ctx context.Context, name string) error {
	t, ok := s.runner.Lookup(name)
	if !ok {
		return unknown(name)
	}
	if err := s.group(ctx, t.Deps); err != nil {
		return err
	}
	if err := s.runner.invoke(ctx, &t); err != nil {
		return err
	}
	return s.group(ctx, t.Then)
}

func (s *run) group(ctx context.Context, names []string) error {
	switch len(names) {
	case 0:
		return nil
	case 1:
		return s.exec(ctx, names[0])
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			return s.exec(gctx, name)
		})
	}
	return g.Wait()
}
