package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates a request with a bad shape or values.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the request collides with one already in flight.
	ErrConflict = errors.New("conflict")
	// ErrPersistence indicates a database read or write failure.
	ErrPersistence = errors.New("persistence failure")
	// ErrUpstream indicates the recommendation service answered with an error.
	ErrUpstream = errors.New("upstream error")
	// ErrUpstreamTimeout indicates the recommendation service did not answer in time.
	ErrUpstreamTimeout = errors.New("upstream timeout")
)

// Validationf builds a validation error whose message is safe to show to the caller.
func Validationf(format string, args ...any) error {
	return &messageError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not-found error whose message is safe to show to the caller.
func NotFoundf(format string, args ...any) error {
	return &messageError{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// Conflictf builds a conflict error whose message is safe to show to the caller.
func Conflictf(format string, args ...any) error {
	return &messageError{kind: ErrConflict, msg: fmt.Sprintf(format, args...)}
}

// Persistence wraps a storage failure for the named operation.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &wrappedError{kind: ErrPersistence, op: op, err: err}
}

// UserMessage returns the part of err that may be shown to API callers.
func UserMessage(err error) string {
	var m *messageError
	if errors.As(err, &m) {
		return m.msg
	}
	switch {
	case errors.Is(err, ErrPersistence):
		return "failed to process request"
	case errors.Is(err, ErrUpstreamTimeout):
		return "recommendation service timed out"
	case errors.Is(err, ErrUpstream):
		return "recommendation service unavailable"
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrConflict):
		return "request conflicts with another in progress"
	case errors.Is(err, ErrValidation):
		return "invalid request"
	}
	return "internal error"
}

type messageError struct {
	kind error
	msg  string
}

func (e *messageError) Error() string { return e.msg }

func (e *messageError) Unwrap() error { return e.kind }

type wrappedError struct {
	kind error
	op   string
	err  error
}

func (e *wrappedError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.kind, e.op, e.err)
}

func (e *wrappedError) Unwrap() []error { return []error{e.kind, e.err} }
