package domain

import (
	"errors"
	"fmt"

	"github.com/fastygo/svckit/pkg/bizcode"
)

// ErrorKind represents a semantic classification shared across transport layers.
type ErrorKind string

const (
	KindInvalid             ErrorKind = "INVALID"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindConflict            ErrorKind = "CONFLICT"
	KindDuplicateKey        ErrorKind = "DUPLICATE_KEY"
	KindConstraintViolation ErrorKind = "CONSTRAINT_VIOLATION"
	KindUnauthorized        ErrorKind = "UNAUTHORIZED"
	KindForbidden           ErrorKind = "FORBIDDEN"
	KindInternal            ErrorKind = "INTERNAL"
)

// Error represents a domain-level error. Code optionally names the business
// code a client can branch on.
type Error struct {
	Kind    ErrorKind
	Message string
	Code    bizcode.Code
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error of the same kind and message, so package-level
// values below work with errors.Is after wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// WithCode returns a copy of e carrying the business code.
func (e *Error) WithCode(code bizcode.Code) *Error {
	cp := *e
	cp.Code = code
	return &cp
}

// NewError builds a domain error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrTaskNotFound     = NewError(KindNotFound, "task not found").WithCode(bizcode.DBNotFound)
	ErrSessionNotFound  = NewError(KindNotFound, "session not found").WithCode(bizcode.DBNotFound)
	ErrTaskNotUpdated   = NewError(KindConflict, "task was not updated").WithCode(bizcode.DBRecordNotUpdated)
	ErrUnauthorized     = NewError(KindUnauthorized, "unauthorized").WithCode(bizcode.AuthUnauthorized)
	ErrForbidden        = NewError(KindForbidden, "forbidden").WithCode(bizcode.AuthForbidden)
	ErrSessionExpired   = NewError(KindUnauthorized, "session expired").WithCode(bizcode.AuthSessionExpired)
	ErrInvalidPayload   = NewError(KindInvalid, "invalid payload").WithCode(bizcode.ReqInvalidPayload)
	ErrMissingParameter = NewError(KindInvalid, "missing parameter").WithCode(bizcode.ReqMissingParam)
)

// IsDomainError helps checking error kinds.
func IsDomainError(err error, kind ErrorKind) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Kind == kind
	}
	return false
}

// AsError returns the outermost *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr, true
	}
	return nil, false
}
