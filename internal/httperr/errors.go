// Package httperr defines the error type raised by the request pipeline.
//
// Every error carries an HTTP status code so the host framework can render
// it without inspecting the message. Use errors.As to get at the status and
// headers, or errors.Is with one of the sentinels to test the category.
package httperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the pipeline stage that raised an error.
type Kind string

const (
	KindCoercion   Kind = "coercion"
	KindValidation Kind = "validation"
	KindDocument   Kind = "document"
	KindNotFound   Kind = "not_found"
	KindMock       Kind = "mock"
)

// Sentinel errors for use with errors.Is.
var (
	ErrCoercion   = errors.New("coercion error")
	ErrValidation = errors.New("validation error")
	ErrDocument   = errors.New("document error")
	ErrNotFound   = errors.New("not found")
	ErrMock       = errors.New("mock error")
)

// Error is a tagged error carrying an HTTP status.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Context holds diagnostic values such as the parameter name or location.
	Context map[string]any
	// Header holds response headers the renderer must set (Allow, WWW-Authenticate).
	Header http.Header
	Cause  error
}

// New creates an error of the given kind and status with a formatted message.
func New(kind Kind, status int, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Status:  status,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates an error that keeps cause in its chain.
func Wrap(cause error, kind Kind, status int, format string, args ...any) *Error {
	e := New(kind, status, format, args...)
	e.Cause = cause
	return e
}

// Error returns the message, followed by the cause when present.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chaining.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindCoercion:
		return target == ErrCoercion
	case KindValidation:
		return target == ErrValidation
	case KindDocument:
		return target == ErrDocument
	case KindNotFound:
		return target == ErrNotFound
	case KindMock:
		return target == ErrMock
	}
	return false
}

// With records a diagnostic value and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithHeader records a response header and returns the error for chaining.
func (e *Error) WithHeader(key, value string) *Error {
	if e.Header == nil {
		e.Header = make(http.Header)
	}
	e.Header.Set(key, value)
	return e
}

// StatusOf returns the status carried by err, or 500 when err is not an *Error.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}
