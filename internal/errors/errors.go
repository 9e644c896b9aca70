package errors

import (
	"fmt"
)

type ErrorType string

const (
	ErrorTypeNotFound  ErrorType = "NOT_FOUND"
	ErrorTypeStorage   ErrorType = "STORAGE"
	ErrorTypeIO        ErrorType = "IO"
	ErrorTypeMalformed ErrorType = "MALFORMED"
	ErrorTypeForbidden ErrorType = "FORBIDDEN"
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
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

// Is matches errors by type, so callers can probe with a bare kind value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Type == e.Type
}

// VersionNotFound reports that no version with the given id exists.
func VersionNotFound(id uint32) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf("version not found: %d", id),
	}
}

// Storage wraps a failed repository call.
func Storage(op string, err error) *Error {
	return &Error{
		Type:    ErrorTypeStorage,
		Message: op,
		Err:     err,
	}
}

// IO wraps a failed tracked-file or store-file operation.
func IO(op string, err error) *Error {
	return &Error{
		Type:    ErrorTypeIO,
		Message: op,
		Err:     err,
	}
}

// Malformed reports unparsable persisted data, naming the offending field.
func Malformed(field string, err error) *Error {
	return &Error{
		Type:    ErrorTypeMalformed,
		Message: fmt.Sprintf("malformed store data: %s", field),
		Err:     err,
	}
}

// RootDeletion is returned when a caller asks to delete the root version.
// The operation is refused outright without mutating any state.
func RootDeletion() *Error {
	return &Error{
		Type:    ErrorTypeForbidden,
		Message: "cannot delete the root version",
	}
}
