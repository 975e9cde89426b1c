package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")
	ErrFileTooLarge         = errors.New("file too large")
	ErrInvalidFileFormat    = errors.New("invalid file format")
	ErrNoRecognizedSheets   = errors.New("no recognized sheets in workbook")
	ErrExternalAPIError     = errors.New("external API error")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrLockTimeout          = errors.New("timed out waiting for upload lock")
)

// FatalParseError means the workbook could not be staged at all.
type FatalParseError struct {
	Reason string
	Err    error
}

func (e FatalParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot parse workbook: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot parse workbook: %s", e.Reason)
}

func (e FatalParseError) Unwrap() error {
	return e.Err
}

func (e FatalParseError) Is(target error) bool {
	return target == ErrInvalidFileFormat
}

func NewFatalParseError(reason string, err error) error {
	return FatalParseError{Reason: reason, Err: err}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NotFound(resource, id string) error {
	return NotFoundError{Resource: resource, ID: id}
}

type ConflictError struct {
	Message string
}

func (e ConflictError) Error() string {
	return e.Message
}

func (e ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func Conflict(format string, args ...interface{}) error {
	return ConflictError{Message: fmt.Sprintf(format, args...)}
}

// InvalidInput wraps ErrInvalidInput with a caller-facing message.
func InvalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ValidationError is a row-level problem. It is advisory: rows carrying
// validation errors are still staged and may still be approved.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	if e.Value == nil || e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s (got %q)", e.Field, e.Message, fmt.Sprint(e.Value))
}

// CommitError records one item that could not be created in the content store.
type CommitError struct {
	Sheet string
	Index int
	Label string
	Err   error
}

func (e CommitError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%s index %d (%s): %v", e.Sheet, e.Index, e.Label, e.Err)
	}
	return fmt.Sprintf("%s index %d: %v", e.Sheet, e.Index, e.Err)
}

func (e CommitError) Unwrap() error {
	return e.Err
}

type RetryableError struct {
	Err     error
	Message string
}

func (e RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %s - %s", e.Message, e.Err.Error())
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

func NewRetryableError(err error, message string) error {
	return RetryableError{
		Err:     err,
		Message: message,
	}
}

func IsRetryable(err error) bool {
	var r RetryableError
	return errors.As(err, &r)
}
