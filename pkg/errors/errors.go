// Package errors defines the sentinel errors shared by the index, its
// snapshot stores and the command-line tools, plus a typed Error that
// attaches a human-readable message while staying errors.Is compatible.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration    = errors.New("configuration error")
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSnapshotCorrupt  = errors.New("snapshot corrupt")
	ErrInternal         = errors.New("internal error")
)

type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *Error {
	return &Error{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *Error {
	return &Error{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// Configf is shorthand for a configuration error raised at setup time.
func Configf(format string, args ...any) *Error {
	return Newf(ErrConfiguration, format, args...)
}

// ExitCode maps an error to the process exit status used by the CLI tools.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidInput):
		return 2
	case errors.Is(err, ErrConfiguration):
		return 3
	case errors.Is(err, ErrDocumentNotFound), errors.Is(err, ErrSnapshotNotFound):
		return 4
	case errors.Is(err, ErrSnapshotCorrupt):
		return 5
	default:
		return 1
	}
}

// Is reports whether any error in err's chain matches target. It mirrors the
// standard library so callers importing this package under its own name do
// not also need the stdlib errors package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As mirrors errors.As from the standard library.
func As(err error, target any) bool {
	return errors.As(err, target)
}
