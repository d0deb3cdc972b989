package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies failures surfaced to callers of the gateway, session and workflow
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "INVALID_CREDENTIALS"
	KindValidation         ErrorKind = "VALIDATION_ERROR"
	KindSessionExpired     ErrorKind = "SESSION_EXPIRED"
	KindUploadFailed       ErrorKind = "UPLOAD_FAILED"
	KindService            ErrorKind = "SERVICE_ERROR"
)

// Sentinels for errors.Is matching by kind
var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrSessionExpired     = &Error{Kind: KindSessionExpired}
	ErrUploadFailed       = &Error{Kind: KindUploadFailed}
	ErrService            = &Error{Kind: KindService}
)

// Error is the uniform error surface of the client core
type Error struct {
	Kind    ErrorKind
	Message string
	// Fields holds field-level detail for validation failures, keyed by field path
	Fields map[string]string
	// Status is the HTTP status that produced the error, 0 for local failures
	Status int
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match when target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates an error of the given kind
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps cause under the given kind
func WrapError(kind ErrorKind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// ValidationFailed creates a validation error carrying field details
func ValidationFailed(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf returns the kind of err, or KindService for errors outside the taxonomy
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindService
}

// FieldErrors returns the field details carried by err, if any
func FieldErrors(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
