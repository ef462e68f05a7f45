// Package notify surfaces recoverable task failures to the developer. The
// desktop implementation raises a system notification, so a broken Sass file
// is noticed even when the terminal running the watcher is hidden.
package notify

import (
	"context"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/sitepipe/sitepipe/internal/logging"
)

// Notifier reports a titled error without interrupting the caller.
type Notifier interface {
	Notify(ctx context.Context, title string, err error)
}

// Desktop raises OS notifications through beeep and logs every message.
type Desktop struct {
	logger logging.Logger
	send   func(title, message string) error
}

// NewDesktop returns a Notifier that raises desktop notifications.
func NewDesktop(logger logging.Logger) *Desktop {
	return &Desktop{
		logger: logger.WithComponent("notify"),
		send:   desktopNotify,
	}
}

// Notify implements Notifier. A failing notification backend (no D-Bus,
// headless CI) is logged and otherwise ignored.
func (d *Desktop) Notify(ctx context.Context, title string, err error) {
	message := "Error: " + errorMessage(err)
	d.logger.Error(ctx, err, title)
	if sendErr := d.send(title, message); sendErr != nil {
		d.logger.Debug(ctx, "desktop notification unavailable", "error", sendErr.Error())
	}
}

func desktopNotify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Log only writes to the logger.
type Log struct {
	logger logging.Logger
}

// NewLog returns a Notifier that only logs.
func NewLog(logger logging.Logger) *Log {
	return &Log{logger: logger.WithComponent("notify")}
}

// Notify implements Notifier.
func (l *Log) Notify(ctx context.Context, title string, err error) {
	l.logger.Error(ctx, err, title)
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// Entry is a recorded notification.
type Entry struct {
	Title   string
	Message string
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, title string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Title: title, Message: errorMessage(err)})
}

// Entries returns a copy of the recorded notifications.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
