// Package errors defines the sentinel errors shared by the engine, the
// services and the command-line tools, and maps them to HTTP status codes
// and short machine-readable codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrIndexNotFound     = errors.New("index not found")
	ErrIndexLocked       = errors.New("index is locked by another writer")
	ErrIndexClosed       = errors.New("index is closed")
	ErrCorruptSegment    = errors.New("corrupt segment")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrQuerySyntax       = errors.New("query syntax error")
	ErrUnknownAnalyzer   = errors.New("unknown analyzer")
	ErrUnknownSimilarity = errors.New("unknown similarity")
	ErrMalformedRecord   = errors.New("malformed record")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

// AppError attaches a message and an explicit HTTP status to a sentinel.
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

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Invalid is shorthand for a 400 AppError wrapping ErrInvalidInput.
func Invalid(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

type kind struct {
	sentinel error
	status   int
	code     string
}

// kinds is matched in order; the first sentinel found in the chain wins.
var kinds = []kind{
	{ErrIndexNotFound, http.StatusNotFound, "index_not_found"},
	{ErrDocumentNotFound, http.StatusNotFound, "document_not_found"},
	{ErrIndexLocked, http.StatusConflict, "index_locked"},
	{ErrQuerySyntax, http.StatusBadRequest, "query_syntax"},
	{ErrUnknownAnalyzer, http.StatusBadRequest, "unknown_analyzer"},
	{ErrUnknownSimilarity, http.StatusBadRequest, "unknown_similarity"},
	{ErrMalformedRecord, http.StatusBadRequest, "malformed_record"},
	{ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{ErrTimeout, http.StatusServiceUnavailable, "timeout"},
	{ErrIndexClosed, http.StatusServiceUnavailable, "index_closed"},
	{ErrCorruptSegment, http.StatusInternalServerError, "corrupt_segment"},
}

func lookup(err error) (kind, bool) {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k, true
		}
	}
	return kind{}, false
}

// HTTPStatusCode returns the status for err: an AppError's own status, else
// the status of its sentinel, else 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	if k, ok := lookup(err); ok {
		return k.status
	}
	return http.StatusInternalServerError
}

// Code returns the machine-readable code of err's sentinel, or "internal".
func Code(err error) string {
	if k, ok := lookup(err); ok {
		return k.code
	}
	return "internal"
}
