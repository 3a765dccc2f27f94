// Package errors defines the engine's error taxonomy. Sentinels are matched
// with errors.Is; typed errors carry the offending field, parse position or
// storage operation. HTTPStatusCode maps them for the HTTP surface.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrSchemaViolation      = errors.New("schema violation")
	ErrWriterLockConflict   = errors.New("writer lock conflict")
	ErrQueryParse           = errors.New("query parse error")
	ErrNotFound             = errors.New("not found")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrStorage              = errors.New("storage error")
	ErrClosed               = errors.New("closed")
	ErrInvalidInput         = errors.New("invalid input")
)

// UnknownFieldError reports a document field that the schema does not define.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s: unknown field %q", ErrSchemaViolation.Error(), e.Field)
}

func (e *UnknownFieldError) Unwrap() error {
	return ErrSchemaViolation
}

// QueryParseError reports a malformed query string. Pos is the byte offset
// in Query at which parsing failed.
type QueryParseError struct {
	Query string
	Pos   int
	Msg   string
}

func (e *QueryParseError) Error() string {
	return fmt.Sprintf("%s at position %d: %s", ErrQueryParse.Error(), e.Pos, e.Msg)
}

func (e *QueryParseError) Unwrap() error {
	return ErrQueryParse
}

// StorageError wraps a failure reported by a storage backend. It matches
// both ErrStorage and the underlying cause.
type StorageError struct {
	Op  string
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s: %v", ErrStorage.Error(), e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", ErrStorage.Error(), e.Op, e.ID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// AppError attaches an HTTP status and a caller-facing message to an error.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Storage builds a StorageError for the given operation and object id.
func Storage(op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, ID: id, Err: err}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrQueryParse), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrSchemaViolation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupportedOperation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrWriterLockConflict):
		return http.StatusConflict
	case errors.Is(err, ErrStorage), errors.Is(err, ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
