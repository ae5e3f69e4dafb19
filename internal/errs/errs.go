// Copyright 2025 James Ross
package errs

import "fmt"

// Kind is the closed taxonomy of domain error categories every layer in this
// module maps to. It replaces the exception hierarchy (KeyError, ValueError)
// of the source this orchestrator was derived from.
type Kind int

const (
	Internal Kind = iota
	NotFound
	Validation
	StateConflict
	Execution
)

// Error carries a stable machine-readable code alongside a Kind so the HTTP
// edge can translate it to a status code and error envelope without string
// matching.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func NotFoundf(code, format string, args ...interface{}) *Error {
	return &Error{Kind: NotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validationf(code, format string, args ...interface{}) *Error {
	return &Error{Kind: Validation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func StateConflictf(code, format string, args ...interface{}) *Error {
	return &Error{Kind: StateConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

// As extracts an *Error from err, returning nil, false when err is not one
// (or is nil).
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	e, ok := err.(*Error)
	return e, ok
}

// Classify extracts the Kind, stable code, and message an edge layer needs
// to render a response, treating any error outside the taxonomy as Internal.
func Classify(err error) (Kind, string, string) {
	if e, ok := As(err); ok {
		return e.Kind, e.Code, e.Message
	}
	return Internal, "INTERNAL_ERROR", err.Error()
}
