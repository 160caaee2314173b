package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the listing lifecycle and the upload proxy.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindUpload        ErrorKind = "upload"
	KindDelete        ErrorKind = "delete"
	KindPersistence   ErrorKind = "persistence"
	KindNotFound      ErrorKind = "not_found"
	KindPermission    ErrorKind = "permission"
	KindConfiguration ErrorKind = "configuration"
)

// Error carries a kind and a human-readable message. Err is the underlying cause, if any.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func ValidationError(msg string) error { return newError(KindValidation, msg, nil) }

func UploadError(msg string, err error) error { return newError(KindUpload, msg, err) }

func DeleteError(msg string, err error) error { return newError(KindDelete, msg, err) }

func PersistenceError(msg string, err error) error { return newError(KindPersistence, msg, err) }

func NotFoundError(msg string) error { return newError(KindNotFound, msg, nil) }

func PermissionError(msg string) error { return newError(KindPermission, msg, nil) }

func ConfigurationError(msg string) error { return newError(KindConfiguration, msg, nil) }

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the human-readable message of a typed error, or err.Error() otherwise.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
