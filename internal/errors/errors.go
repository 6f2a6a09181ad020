// Package errors defines the structured error taxonomy for the rendering
// pipeline. Every backend-level failure is classified into one of the error
// types below before it crosses a package boundary, so callers can decide
// between reporting, retrying later, or prompting the user without string
// matching.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of render pipeline errors.
type ErrorType string

const (
	// ErrorTypeClassification marks sources no classification rule matched.
	// Recoverable through a manual backend/type selection.
	ErrorTypeClassification ErrorType = "classification"
	// ErrorTypeUnavailable marks a backend whose probe failed for the
	// required diagram type. Reported, never retried automatically.
	ErrorTypeUnavailable ErrorType = "backend_unavailable"
	// ErrorTypeClient marks input the backend rejected, e.g. a syntax
	// error. Carries the backend diagnostic verbatim; not retried.
	ErrorTypeClient ErrorType = "client"
	// ErrorTypeServer marks a remote-side failure (5xx).
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeTimeout marks an operation that exceeded its deadline.
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection marks a transport-level failure.
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeSanitization marks SVG output that could not be parsed.
	// Degrades to empty output rather than propagating.
	ErrorTypeSanitization ErrorType = "sanitization"
	// ErrorTypeConfig marks invalid resolved configuration.
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeIO marks filesystem and subprocess plumbing failures.
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeInternal marks bugs and unexpected states.
	ErrorTypeInternal ErrorType = "internal"
)

// RenderError is a structured error with context.
type RenderError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Backend     string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Backend != "" {
		parts = append(parts, "backend:"+e.Backend)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *RenderError) Is(target error) bool {
	var t *RenderError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *RenderError) WithContext(key string, value interface{}) *RenderError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithBackend adds backend context.
func (e *RenderError) WithBackend(backend string) *RenderError {
	e.Backend = backend

	return e
}

// WithFile adds source file context.
func (e *RenderError) WithFile(path string) *RenderError {
	e.FilePath = path

	return e
}

// Error creation functions

// NewClassificationError creates an error for unclassifiable source.
func NewClassificationError(code, message string) *RenderError {
	return &RenderError{
		Type:        ErrorTypeClassification,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewUnavailableError creates an error for an unavailable backend.
func NewUnavailableError(code, message string) *RenderError {
	return &RenderError{
		Type:        ErrorTypeUnavailable,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewClientError creates an error for input the backend rejected.
func NewClientError(code, message string) *RenderError {
	return &RenderError{
		Type:        ErrorTypeClient,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewServerError creates an error for a remote-side failure.
func NewServerError(code, message string, cause error) *RenderError {
	return &RenderError{
		Type:        ErrorTypeServer,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewTimeoutError creates an error for an exceeded deadline.
func NewTimeoutError(code, message string, cause error) *RenderError {
	return &RenderError{
		Type:        ErrorTypeTimeout,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConnectionError creates an error for a transport failure.
func NewConnectionError(code, message string, cause error) *RenderError {
	return &RenderError{
		Type:        ErrorTypeConnection,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewSanitizationError creates an error for unparseable SVG output.
func NewSanitizationError(code, message string, cause error) *RenderError {
	return &RenderError{
		Type:        ErrorTypeSanitization,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *RenderError {
	return &RenderError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *RenderError {
	return &RenderError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *RenderError {
	return &RenderError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Error inspection utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Recoverable
	}

	return false
}

// IsType checks whether an error carries the given taxonomy type.
func IsType(err error, t ErrorType) bool {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Type == t
	}

	return false
}

// IsTransient reports whether the error is worth retrying later. Client
// errors and unavailability are deterministic and excluded.
func IsTransient(err error) bool {
	var re *RenderError
	if errors.As(err, &re) {
		switch re.Type {
		case ErrorTypeServer, ErrorTypeTimeout, ErrorTypeConnection:
			return true
		}
	}

	return false
}
