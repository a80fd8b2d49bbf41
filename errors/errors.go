package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrIdentityInvalid means the supplied token could not be resolved
	// against the user store. The transport stays attached but
	// unauthenticated so the client can retry.
	ErrIdentityInvalid = fmt.Errorf("identity invalid")
	// ErrInvalidMessage rejects empty or whitespace-only bodies.
	ErrInvalidMessage = fmt.Errorf("invalid message")
	ErrMessageTooLong = fmt.Errorf("message too long")
	ErrForbidden      = fmt.Errorf("forbidden")
	ErrNotFound       = fmt.Errorf("not found")
	// ErrConnectionNotFound marks a race between a client action and
	// server-side cleanup. Logged, never fatal.
	ErrConnectionNotFound = fmt.Errorf("connection not found")
	ErrNotJoined          = fmt.Errorf("connection has not joined")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// StatusCode maps a domain error to the HTTP status returned by the
// REST fallback. Unknown errors map to 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotJoined):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidMessage),
		errors.Is(err, ErrMessageTooLong),
		errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrUserAlreadyExists):
		return http.StatusBadRequest
	case errors.Is(err, ErrIdentityInvalid),
		errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Code is the machine-readable error identifier sent in error events.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotJoined):
		return "Forbidden"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrMessageTooLong):
		return "InvalidMessage"
	case errors.Is(err, ErrIdentityInvalid):
		return "IdentityInvalid"
	case errors.Is(err, ErrConnectionNotFound):
		return "ConnectionNotFound"
	default:
		return "Internal"
	}
}

// Is re-exports the standard library matcher so callers of this package
// do not need a second errors import under an alias.
func Is(err, target error) bool { return errors.Is(err, target) }
