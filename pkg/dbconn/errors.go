package dbconn

import (
	"errors"
	"fmt"
)

// Kind classifies why a connection could not be resolved.
type Kind int

const (
	// InitFailed means configuration was missing or invalid, or the underlying
	// connect failed.
	InitFailed Kind = iota + 1
	// NotConfigured means connection resolution was compiled out.
	NotConfigured
)

func (k Kind) String() string {
	switch k {
	case InitFailed:
		return "init_failed"
	case NotConfigured:
		return "not_configured"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is checks against a *ResolutionError.
var (
	ErrInitFailed    = errors.New("dbconn: connection provider initialization failed")
	ErrNotConfigured = errors.New("dbconn: connection resolution is not enabled in this build")
)

// ResolutionError is returned when no default connection could be produced.
type ResolutionError struct {
	Kind Kind
	Err  error
}

func (e *ResolutionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("dbconn: resolve connection (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("dbconn: resolve connection (%s)", e.Kind)
}

func (e *ResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the package sentinels by kind.
func (e *ResolutionError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrInitFailed:
		return e.Kind == InitFailed
	case ErrNotConfigured:
		return e.Kind == NotConfigured
	}
	return false
}

// BorrowError wraps a failure to borrow from an already initialized pool.
type BorrowError struct {
	Err error
}

func (e *BorrowError) Error() string {
	return fmt.Sprintf("dbconn: borrow connection: %v", e.Err)
}

func (e *BorrowError) Unwrap() error { return e.Err }

// IsResolution reports whether err carries a *ResolutionError and returns it.
func IsResolution(err error) (*ResolutionError, bool) {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
