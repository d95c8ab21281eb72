// Package apperr defines the typed failure conditions raised by the services.
// The HTTP boundary in package api maps each Kind to a status code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindDuplicate
	KindInvalidCredentials
	KindUnauthenticated
	KindForbidden
	KindNotFound
)

// Error is a classified application failure.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ValidationMessage is the headline message for field validation failures.
const ValidationMessage = "Validation failed for the following reasons:"

func Validation(details ...string) *Error {
	return &Error{Kind: KindValidation, Message: ValidationMessage, Details: details}
}

// BadRequest is a validation failure with a single message and no field details.
func BadRequest(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Duplicate(msg string, err error) *Error {
	return &Error{Kind: KindDuplicate, Message: msg, Err: err}
}

func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "Invalid credentials"}
}

func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "Unauthorized"}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(msg string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnexpected.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnexpected
}
