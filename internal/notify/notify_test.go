package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepipe/sitepipe/internal/logging"
)

func TestDesktopNotify(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Output: &buf})

	var gotTitle, gotMessage string
	d := NewDesktop(logger)
	d.send = func(title, message string) error {
		gotTitle, gotMessage = title, message
		return errors.New("no notification daemon")
	}

	d.Notify(context.Background(), "Error Compiling Sass", errors.New("expected \";\""))

	assert.Equal(t, "Error Compiling Sass", gotTitle)
	assert.Equal(t, "Error: expected \";\"", gotMessage)
	assert.Contains(t, buf.String(), "Error Compiling Sass")
	assert.Contains(t, buf.String(), "desktop notification unavailable")
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Notify(context.Background(), "Error Compiling HTML", errors.New("unexpected endblock"))
	r.Notify(context.Background(), "Error Compiling HTML", nil)

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "unexpected endblock", entries[0].Message)
	assert.Equal(t, "unknown error", entries[1].Message)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelInfo, Output: &buf})

	NewLog(logger).Notify(context.Background(), "Error Compiling Sass", errors.New("boom"))
	assert.Contains(t, buf.String(), "component=notify")
	assert.Contains(t, buf.String(), "error=boom")
}
