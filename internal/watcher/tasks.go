// Package watcher re-runs build tasks when their sources change. Each rule
// maps a set of globs to one task; a debounced batch of changes triggers
// every task whose globs it touches.
package watcher

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sitepipe/sitepipe/internal/config"
	"github.com/sitepipe/sitepipe/internal/fileset"
	"github.com/sitepipe/sitepipe/internal/logging"
	"github.com/sitepipe/sitepipe/internal/task"
)

// TaskName is the name the watcher is registered under.
const TaskName = "app-watch"

// Rule re-runs Task when a file matching one of Patterns changes.
type Rule struct {
	Task     string
	Patterns []string
}

// Rules returns the watch rules of cfg.
func Rules(cfg config.WatchConfig, styleTask, markupTask string) []Rule {
	return []Rule{
		{Task: styleTask, Patterns: cfg.Style},
		{Task: markupTask, Patterns: cfg.Markup},
	}
}

// Triggerer re-runs a single task without its dependencies.
type Triggerer interface {
	Trigger(ctx context.Context, name string) error
}

// TaskWatcher is the app-watch task.
type TaskWatcher struct {
	root     string
	debounce time.Duration
	rules    []Rule
	runner   Triggerer
	logger   logging.Logger

	wg sync.WaitGroup
}

// NewTaskWatcher creates a watcher for the project at root.
func NewTaskWatcher(root string, debounce time.Duration, rules []Rule, runner Triggerer, logger logging.Logger) *TaskWatcher {
	return &TaskWatcher{
		root:     root,
		debounce: debounce,
		rules:    rules,
		runner:   runner,
		logger:   logger.WithComponent(TaskName),
	}
}

// Tasks returns the tasks touched by events, in rule order.
func (w *TaskWatcher) Tasks(events []ChangeEvent) []string {
	var out []string
	for _, rule := range w.rules {
		for _, ev := range events {
			if fileset.Match(rule.Patterns, ev.Rel) {
				out = append(out, rule.Task)
				break
			}
		}
	}
	return out
}

// Handle triggers the tasks touched by events. Each task runs in its own
// goroutine; overlapping triggers of the same task are coalesced by the
// runner.
func (w *TaskWatcher) Handle(ctx context.Context, events []ChangeEvent) error {
	for _, name := range w.Tasks(events) {
		w.logger.Info(ctx, "Change detected", "task", name, "files", changedFiles(events))
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.runner.Trigger(ctx, name); err != nil && ctx.Err() == nil {
				w.logger.Error(ctx, err, "Watched task failed", "task", name)
			}
		}()
	}
	return nil
}

// Start begins watching. The watcher lives in the session until shutdown.
func (w *TaskWatcher) Start(ctx context.Context, session *task.Session) error {
	fw, err := NewFileWatcher(w.root, w.debounce, w.logger)
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}

	var patterns []string
	for _, rule := range w.rules {
		patterns = append(patterns, rule.Patterns...)
	}
	fw.AddFilter(NoEditorFilter)
	fw.AddFilter(GlobFilter(patterns))
	fw.AddHandler(w.Handle)

	watched := 0
	for _, dir := range watchDirs(patterns) {
		if err := fw.AddRecursive(dir); err != nil {
			if os.IsNotExist(err) {
				w.logger.Warn(ctx, err, "Watch directory does not exist", "dir", dir)
				continue
			}
			fw.Stop()
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		watched++
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if err := fw.Start(runCtx); err != nil {
		cancel()
		fw.Stop()
		return err
	}

	session.Go(func() error {
		fw.Wait()
		return nil
	})
	session.OnShutdown(TaskName, func(context.Context) error {
		cancel()
		err := fw.Stop()
		w.wg.Wait()
		return err
	})

	w.logger.Info(ctx, "Watching for changes", "dirs", watched)
	return nil
}

// watchDirs returns the static directories of patterns, without nested
// duplicates.
func watchDirs(patterns []string) []string {
	seen := map[string]bool{}
	for _, p := range patterns {
		seen[fileset.Base(p)] = true
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	var out []string
	for _, d := range dirs {
		covered := false
		for _, parent := range out {
			if parent == "." || d == parent || len(d) > len(parent) && d[:len(parent)] == parent && d[len(parent)] == '/' {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, d)
		}
	}
	return out
}

func changedFiles(events []ChangeEvent) []string {
	files := make([]string, 0, len(events))
	for _, ev := range events {
		files = append(files, ev.Rel)
	}
	return files
}
