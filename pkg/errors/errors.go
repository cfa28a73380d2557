package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so cloned and wrapped instances compare equal
// under errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && t != nil && e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors covering the pipeline failure taxonomy.
var (
	// ErrSchema: missing or unexpected columns in the raw table. Fatal for the
	// whole run; schema drift must never propagate downstream.
	ErrSchema = New("SCHEMA_ERROR", http.StatusUnprocessableEntity, "schema validation failed")

	// ErrRowValidation aggregates per-row violations into a batch failure.
	ErrRowValidation = New("ROW_VALIDATION", http.StatusUnprocessableEntity, "row validation failed")

	// ErrUniqueness: duplicate (student_id, exam_id, attempt_number) rows.
	ErrUniqueness = New("UNIQUENESS_VIOLATION", http.StatusConflict, "duplicate attempt rows detected")

	// ErrEmptyResult: a stage produced zero output rows.
	ErrEmptyResult = New("EMPTY_RESULT", http.StatusUnprocessableEntity, "stage produced no output records")

	// ErrUnsupportedBackend: unknown narrative backend, raised before any
	// network attempt.
	ErrUnsupportedBackend = New("UNSUPPORTED_BACKEND", http.StatusBadRequest, "unsupported narrative backend")

	// ErrNarrativeParse: the backend never returned parseable JSON within the
	// retry budget.
	ErrNarrativeParse = New("NARRATIVE_PARSE", http.StatusBadGateway, "narrative backend returned no valid JSON")

	ErrNotFound   = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrValidation = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal   = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrCacheMiss is internal to the cache layer and never reaches HTTP.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
