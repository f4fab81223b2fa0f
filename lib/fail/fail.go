// Package fail carries the fatal error categories the CLI exits with.
// Scripts depend on these exit codes staying stable.
package fail

import (
	"errors"
	"fmt"
)

const (
	// ExitCredentials covers wrong or misconfigured Okta credentials.
	ExitCredentials = 1
	// ExitUnexpected covers responses Okta should never send.
	ExitUnexpected = 2
	// ExitMFA covers enrollment and factor configuration failures.
	ExitMFA = 3
	// ExitProtocol covers a missing SAML assertion despite a valid session token.
	ExitProtocol = 4
	// ExitBadAppURL covers a malformed Okta app URL during profile setup.
	ExitBadAppURL = 6
)

// Error is a fatal, non-retryable failure with an associated exit code.
type Error struct {
	ExitCode int
	Err      error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Newf builds a fatal error for the given exit code.
func Newf(code int, format string, args ...interface{}) *Error {
	return &Error{ExitCode: code, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches an exit code to an underlying error.
func Wrap(code int, err error) *Error {
	return &Error{ExitCode: code, Err: err}
}

// Code extracts the exit code from an error chain, defaulting to
// ExitUnexpected for errors that were never classified.
func Code(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.ExitCode
	}
	return ExitUnexpected
}
