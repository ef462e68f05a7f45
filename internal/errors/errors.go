// Package errors defines the error types shared by pipeline tasks: BuildError
// for recoverable compile and lint problems tied to a source file, and
// PipelineError for failures that abort a task run.
package errors

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// BuildError represents a recoverable problem found while compiling or
// validating a source file.
type BuildError struct {
	Task      string
	File      string
	Line      int
	Column    int
	Rule      string
	Message   string
	Severity  ErrorSeverity
	Timestamp time.Time
}

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Error implements the error interface
func (be *BuildError) Error() string {
	var b strings.Builder
	b.WriteString(be.File)
	if be.Line > 0 {
		fmt.Fprintf(&b, ":%d:%d", be.Line, be.Column)
	}
	fmt.Fprintf(&b, ": %s: %s", be.Severity, be.Message)
	if be.Rule != "" {
		fmt.Fprintf(&b, " (%s)", be.Rule)
	}
	return b.String()
}

// ErrorCollector collects build errors per task. A task clears its own
// entries before each run so the collector always reflects the latest run.
type ErrorCollector struct {
	buildErrors []BuildError
	mutex       sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		buildErrors: make([]BuildError, 0),
	}
}

// Add adds a build error to the collector
func (ec *ErrorCollector) Add(err BuildError) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	ec.buildErrors = append(ec.buildErrors, err)
}

// GetErrors returns a copy of all collected build errors
func (ec *ErrorCollector) GetErrors() []BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]BuildError, len(ec.buildErrors))
	copy(result, ec.buildErrors)
	return result
}

// HasErrors reports whether anything at error severity was collected.
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	for _, err := range ec.buildErrors {
		if err.Severity >= ErrorSeverityError {
			return true
		}
	}
	return false
}

// ClearTask drops every entry recorded for task.
func (ec *ErrorCollector) ClearTask(task string) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	kept := ec.buildErrors[:0]
	for _, err := range ec.buildErrors {
		if err.Task != task {
			kept = append(kept, err)
		}
	}
	ec.buildErrors = kept
}

// GetErrorsByFile returns errors for a specific file
func (ec *ErrorCollector) GetErrorsByFile(file string) []BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var fileErrors []BuildError
	for _, err := range ec.buildErrors {
		if err.File == file {
			fileErrors = append(fileErrors, err)
		}
	}
	return fileErrors
}

// Summary renders the collected errors as plain text, most severe first.
// The CLI prints it after a run that recorded errors.
func (ec *ErrorCollector) Summary() string {
	errs := ec.GetErrors()
	if len(errs) == 0 {
		return ""
	}
	sort.SliceStable(errs, func(i, j int) bool {
		return errs[i].Severity > errs[j].Severity
	})
	lines := make([]string, 0, len(errs))
	for i := range errs {
		lines = append(lines, errs[i].Error())
	}
	return strings.Join(lines, "\n")
}
