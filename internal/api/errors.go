package api

import (
	"errors"
	"fmt"
)

const authExpiredMessage = "Authentication expired"

// AuthError means the blog api rejected the session token (401); the session
// is already cleared when this is returned
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// HttpError is any other non-2xx response; Message is safe to show in a view
type HttpError struct {
	Status  int
	Message string
}

func (e *HttpError) Error() string {
	return e.Message
}

// NetworkError wraps transport failures: refused connections, timeouts, cancellation
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// SchemaError means a 2xx response body did not match what the caller declared
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unexpected api response: %s", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// SessionError means the local session storage could not be read, so the call
// was never made
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session storage: %s", e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
