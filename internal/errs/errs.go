// Package errs defines the error taxonomy shared by commands, the runner
// and the CLI.
package errs

import (
	"errors"
)

// Code is a chain error code.
type Code string

const (
	// Configuration marks a bad option value. Never retried.
	Configuration Code = "configuration"
	// Cast marks a value that could not be converted to the requested type.
	Cast Code = "cast"
	// Assertion marks a candidate that failed an upcoming assertion.
	Assertion       Code = "assertion"
	InvalidArgument Code = "invalid_argument"
	Timeout         Code = "timeout"
	Internal        Code = "internal"
)

// Coded is implemented by typed errors that carry their own code.
type Coded interface {
	ErrCode() Code
}

// Error is a coded error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrCode implements Coded.
func (e *Error) ErrCode() Code {
	return e.Code
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the code of the outermost coded error in the chain,
// defaulting to internal.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded Coded
	if errors.As(err, &coded) {
		if code := coded.ErrCode(); code != "" {
			return code
		}
	}
	return Internal
}

// MessageOf returns the user-facing message of err. Coded *Error values
// report their own message; anything else reports err.Error().
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return err.Error()
}

// ExitCode maps an error code to a process exit status.
func ExitCode(code Code) int {
	switch code {
	case Assertion, Cast, Timeout:
		return 1
	case Configuration, InvalidArgument:
		return 2
	default:
		return 3
	}
}
