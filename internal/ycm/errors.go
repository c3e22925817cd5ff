package ycm

import (
	"errors"
	"fmt"
)

// Standard errors returned by the completion client.
var (
	// ErrNoActiveSecret indicates a request was attempted outside a
	// running session.
	ErrNoActiveSecret = errors.New("no active session secret")

	// ErrPortNotFound indicates the daemon's port announcement was not
	// found in its output.
	ErrPortNotFound = errors.New("daemon port not found in output")

	// ErrSessionNotRunning indicates the session has not been started.
	ErrSessionNotRunning = errors.New("session not running")

	// ErrAlreadyStarted indicates the session is already running.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrProcessNotRunning indicates the daemon process is not running
	// when an operation expected it to be.
	ErrProcessNotRunning = errors.New("daemon process not running")

	// ErrResponseSignature indicates a response HMAC did not match the
	// response body.
	ErrResponseSignature = errors.New("response signature mismatch")
)

// ProcessError represents a failure to spawn or manage the daemon process.
type ProcessError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	return fmt.Sprintf("daemon process %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// TransportError represents a network-level request failure.
type TransportError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError represents a malformed response from the daemon.
type ParseError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response from %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ServerError represents a non-success status returned by the daemon.
type ServerError struct {
	Path    string
	Status  int
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("daemon %s: status %d: %s", e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("daemon %s: status %d", e.Path, e.Status)
}
