package store

import (
	"fmt"
	"net/http"
)

// Error is a persistence error with an HTTP status code.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)

	// base is the sentinel this error specializes, if any.
	base *Error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets specialized sentinels match their generic parent, so
// errors.Is(ErrBookNotFound, ErrNotFound) holds.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	for b := e; b != nil; b = b.base {
		if b == t {
			return true
		}
	}
	return false
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err, base: e}
}

func specialize(base *Error, msg string) *Error {
	return &Error{Code: base.Code, Message: msg, base: base}
}

// Generic sentinels.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "resource not found",
	}

	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "resource already exists",
	}
)

// Entity-specific sentinels.
var (
	ErrUserNotFound   = specialize(ErrNotFound, "user not found")
	ErrBookNotFound   = specialize(ErrNotFound, "book not found")
	ErrEmailExists    = specialize(ErrAlreadyExists, "email already exists")
	ErrUsernameExists = specialize(ErrAlreadyExists, "username already exists")
)
