// Package apperr defines the error kinds shared by the stores, the reconciler
// and the write path.
//
// Errors carry a Code and compare equal under errors.Is when their codes
// match, so callers test against the sentinels:
//
//	if errors.Is(err, apperr.ErrNotFound) { ... }
package apperr

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyExists     = "ALREADY_EXISTS"
	CodeConflict          = "CONFLICT"
	CodeOffline           = "OFFLINE"
	CodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	CodeScopeMismatch     = "SCOPE_MISMATCH"
	CodeNoOwner           = "NO_OWNER"
	CodeInvalidRecord     = "INVALID_RECORD"
)

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound          = AppError{Code: CodeNotFound, Message: "record not found"}
	ErrAlreadyExists     = AppError{Code: CodeAlreadyExists, Message: "record already exists"}
	ErrConflict          = AppError{Code: CodeConflict, Message: "identifier already exists remotely"}
	ErrOffline           = AppError{Code: CodeOffline, Message: "device is offline"}
	ErrRemoteUnavailable = AppError{Code: CodeRemoteUnavailable, Message: "remote store unavailable"}
	ErrScopeMismatch     = AppError{Code: CodeScopeMismatch, Message: "scope reference does not resolve"}
	ErrNoOwner           = AppError{Code: CodeNoOwner, Message: "no owner in session"}
	ErrInvalidRecord     = AppError{Code: CodeInvalidRecord, Message: "invalid record"}
)

// AppError is an error with a stable code.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error returns a string representation of the error
func (e AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is implements the errors.Is interface
func (e AppError) Is(target error) bool {
	if t, ok := target.(AppError); ok {
		return t.Code == e.Code
	}
	return false
}

// Unwrap returns the underlying error
func (e AppError) Unwrap() error {
	return e.Err
}

// NotFound reports an update or delete of an unknown identifier.
func NotFound(kind, id string) AppError {
	return AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", kind, id)}
}

// AlreadyExists reports a local add whose identifier collides.
func AlreadyExists(kind, id string) AppError {
	return AppError{Code: CodeAlreadyExists, Message: fmt.Sprintf("%s %s already exists", kind, id)}
}

// Conflict reports a remote add whose identifier is already taken.
func Conflict(kind, id string, err error) AppError {
	return AppError{Code: CodeConflict, Message: fmt.Sprintf("%s %s already exists remotely", kind, id), Err: err}
}

// Offline reports an operation attempted without connectivity.
func Offline(op string) AppError {
	return AppError{Code: CodeOffline, Message: op + ": device is offline"}
}

// RemoteUnavailable wraps a network or backend failure.
func RemoteUnavailable(op string, err error) AppError {
	return AppError{Code: CodeRemoteUnavailable, Message: op, Err: err}
}

// ScopeMismatch reports a record whose parent/owner reference is absent.
func ScopeMismatch(kind, id, scope string) AppError {
	return AppError{Code: CodeScopeMismatch, Message: fmt.Sprintf("%s %s references missing scope %s", kind, id, scope)}
}

// InvalidRecord wraps a validation failure.
func InvalidRecord(kind string, err error) AppError {
	return AppError{Code: CodeInvalidRecord, Message: "invalid " + kind, Err: err}
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var ae AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
