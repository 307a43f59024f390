package core

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries every field-level problem found in a request.
// Messages reported more than once for the same field are joined with a space.
type ValidationError struct {
	Err    error
	Fields map[string]string
}

func NewValidationError(err error, flds ...FieldError) error {
	verr := &ValidationError{Err: err}
	for _, f := range flds {
		verr.Add(f.Field, f.Error)
	}
	return verr
}

// Add appends msg to the messages already collected for field.
func (err *ValidationError) Add(field, msg string) {
	if err.Fields == nil {
		err.Fields = make(map[string]string)
	}
	if prev, ok := err.Fields[field]; ok && prev != "" {
		err.Fields[field] = prev + " " + msg
		return
	}
	err.Fields[field] = msg
}

func (err *ValidationError) HasErrors() bool {
	return len(err.Fields) > 0
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	if len(err.Fields) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(err.Fields))
	for f := range err.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// ConflictError reports a uniqueness violation on Field.
type ConflictError struct {
	Field   string
	Message string
}

func NewConflictError(field, msg string) error {
	return &ConflictError{Field: field, Message: msg}
}

func (err ConflictError) Error() string {
	return err.Message
}

// IsConflict reports whether err is (or wraps) a *ConflictError.
func IsConflict(err error) bool {
	var cerr *ConflictError
	return errors.As(err, &cerr)
}

// NotificationError wraps a failed best-effort delivery.
// It is never returned as the primary error of an operation.
type NotificationError struct {
	Err error
}

func (err NotificationError) Error() string {
	return "notification dispatch failed: " + err.Err.Error()
}

func (err NotificationError) Unwrap() error { return err.Err }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
