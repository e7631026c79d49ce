// Package cerr defines the stable set of domain errors the services
// surface. Remote failures from the identity provider, the document
// database, and blob storage are always recovered at the service
// boundary and re-thrown as one of these, so provider-specific error
// shapes never leak past a store or the session manager.
package cerr

import (
	"errors"
	"fmt"
)

// Code is a string-identified error condition. The values are part of
// the contract with callers; the UI keys retry hints off them.
type Code string

const (
	CodeEmailInUse      Code = "email-already-in-use"
	CodeUserNotFound    Code = "user-not-found"
	CodeWrongPassword   Code = "wrong-password"
	CodeWeakPassword    Code = "weak-password"
	CodeInvalidEmail    Code = "invalid-email"
	CodeAccountDisabled Code = "account-disabled"
	CodeNetwork         Code = "NETWORK_ERROR"
	CodeCORS            Code = "CORS_ERROR"
	CodePermission      Code = "PERMISSION_ERROR"
)

// Error carries a stable code, a short human-readable message, and
// the underlying cause (if any).
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two domain errors by code so callers can use errors.Is
// with the package sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New builds a domain error with the canonical message for code.
func New(code Code) *Error {
	return &Error{Code: code, Message: message(code)}
}

// Wrap builds a domain error with the canonical message for code and
// keeps err as the cause.
func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Message: message(code), Err: err}
}

// Sentinels for errors.Is checks.
var (
	ErrDuplicateAccount = New(CodeEmailInUse)
	ErrProfileNotFound  = New(CodeUserNotFound)
	ErrWrongPassword    = New(CodeWrongPassword)
	ErrWeakPassword     = New(CodeWeakPassword)
	ErrInvalidEmail     = New(CodeInvalidEmail)
	ErrAccountDisabled  = New(CodeAccountDisabled)
	ErrNetwork          = New(CodeNetwork)
)

// message maps a code to the short UI-facing text. Composing the full
// presentation (message plus suggested next action) is the UI's job.
func message(code Code) string {
	switch code {
	case CodeEmailInUse:
		return "An account with this email already exists."
	case CodeUserNotFound:
		return "No account was found for this email."
	case CodeWrongPassword:
		return "Incorrect email or password."
	case CodeWeakPassword:
		return "The password is too weak."
	case CodeInvalidEmail:
		return "Enter a valid email address."
	case CodeAccountDisabled:
		return "This account has been disabled."
	case CodeNetwork:
		return "A network error occurred. Check your connection."
	case CodeCORS:
		return "The storage service rejected the request origin."
	case CodePermission:
		return "You do not have permission to upload files."
	}
	return "Something went wrong. Try again."
}

// FromProviderCode maps an identity-provider error code string to the
// matching domain error. Unknown codes degrade to a network error so
// no raw provider code reaches a caller.
func FromProviderCode(code string, cause error) *Error {
	switch Code(code) {
	case CodeEmailInUse, CodeUserNotFound, CodeWrongPassword, CodeWeakPassword, CodeInvalidEmail:
		return Wrap(Code(code), cause)
	}
	return Wrap(CodeNetwork, cause)
}
