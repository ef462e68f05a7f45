package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// PipelineError is a structured error carrying the task and path involved.
type PipelineError struct {
	Type    ErrorType
	Task    string
	Path    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var parts []string
	if e.Task != "" {
		parts = append(parts, "["+e.Task+"]")
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}
	return result
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// FileOperationError wraps a filesystem failure on path.
func FileOperationError(task, path, message string, cause error) *PipelineError {
	return &PipelineError{Type: ErrorTypeIO, Task: task, Path: path, Message: message, Cause: cause}
}

// NetworkError wraps a failure talking to a remote endpoint.
func NetworkError(task, endpoint, message string, cause error) *PipelineError {
	return &PipelineError{Type: ErrorTypeNetwork, Task: task, Path: endpoint, Message: message, Cause: cause}
}

// ConfigurationError reports an invalid or missing setting.
func ConfigurationError(setting, message string) *PipelineError {
	return &PipelineError{Type: ErrorTypeConfig, Path: setting, Message: message}
}

// HasErrorType reports whether any PipelineError in err's chain has type t.
func HasErrorType(err error, t ErrorType) bool {
	for err != nil {
		var pe *PipelineError
		if !errors.As(err, &pe) {
			return false
		}
		if pe.Type == t {
			return true
		}
		err = pe.Cause
	}
	return false
}
