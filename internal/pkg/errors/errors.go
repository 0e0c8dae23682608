package errors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalid       = errors.New("invalid")
	ErrConflict      = errors.New("conflict")
	ErrNoFile        = errors.New("no file passed to import")
	ErrBinaryContent = errors.New("binary content")
	ErrFileTooLarge  = errors.New("file too large")
	ErrRemote        = errors.New("remote error")
	ErrInvalidPath   = errors.New("invalid document path")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInputRejected reports failures caused by the caller's input rather than I/O.
func IsInputRejected(err error) bool {
	return errors.Is(err, ErrNoFile) || errors.Is(err, ErrBinaryContent) || errors.Is(err, ErrFileTooLarge)
}
