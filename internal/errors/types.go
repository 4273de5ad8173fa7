// Package errors provides the structured error type shared by the worker
// bundling pipeline, the dev server and the static build.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeResolve    ErrorType = "resolve"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodeBuildFailed      = "ERR_BUILD_FAILED"
	ErrCodeNoOutput         = "ERR_NO_OUTPUT"
	ErrCodeMinifyFailed     = "ERR_MINIFY_FAILED"
	ErrCodeResolveFailed    = "ERR_RESOLVE_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeAssetUnresolved  = "ERR_ASSET_UNRESOLVED"
	ErrCodeNotWorkerImport  = "ERR_NOT_WORKER_IMPORT"
	ErrCodeWriteFailed      = "ERR_WRITE_FAILED"
	ErrCodeUnsupportedValue = "ERR_UNSUPPORTED_VALUE"
)

// SWError is a structured error type with context.
type SWError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	FilePath string
	Line     int
	Column   int
}

// Error implements the error interface.
func (e *SWError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SWError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *SWError) Is(target error) bool {
	var t *SWError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SWError) WithContext(key string, value interface{}) *SWError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *SWError) WithLocation(filePath string, line, column int) *SWError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *SWError {
	return &SWError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *SWError {
	return &SWError{
		Type:    ErrorTypeBuild,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewResolveError creates a module resolution error.
func NewResolveError(code, message string) *SWError {
	return &SWError{
		Type:    ErrorTypeResolve,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *SWError {
	return &SWError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SWError {
	return &SWError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// FromMessages converts esbuild diagnostics into a single build error. The
// first message supplies the location; the remaining ones are appended to
// the message text. It returns nil for an empty slice.
func FromMessages(code string, msgs []api.Message) *SWError {
	if len(msgs) == 0 {
		return nil
	}

	texts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		text := msg.Text
		if msg.PluginName != "" {
			text = fmt.Sprintf("[plugin %s] %s", msg.PluginName, text)
		}
		texts = append(texts, text)
	}

	err := NewBuildError(code, strings.Join(texts, "; "), nil)
	err.WithContext("count", len(msgs))

	if loc := msgs[0].Location; loc != nil {
		err.WithLocation(loc.File, loc.Line, loc.Column)
	}

	return err
}

// IsBuildError checks if an error is a build error.
func IsBuildError(err error) bool {
	var se *SWError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeBuild
	}

	return false
}

// IsType reports whether err carries a *SWError of the given type.
func IsType(err error, t ErrorType) bool {
	var se *SWError
	if errors.As(err, &se) {
		return se.Type == t
	}

	return false
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// ErrorHandler provides centralized error logging.
type ErrorHandler struct {
	logger Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error with a severity matching its type.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var se *SWError
	if !errors.As(err, &se) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch se.Type {
	case ErrorTypeBuild, ErrorTypeResolve:
		h.logger.Warn(ctx, err, "Worker build failed",
			"type", se.Type,
			"code", se.Code,
			"file", se.FilePath)
	case ErrorTypeValidation:
		h.logger.Warn(ctx, err, "Validation error occurred",
			"type", se.Type,
			"code", se.Code)
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", se.Type,
			"code", se.Code)
	}
}
