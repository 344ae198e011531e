package store

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by store implementations.
//
// Remote failures are reported as *RequestError, which unwraps to one of
// these so callers can use errors.Is:
//
//	if errors.Is(err, store.ErrNotFound) {
//	    // database id is wrong or not shared with the integration
//	}
var (
	// ErrUnauthorized is returned when the token is rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when a database or record does not exist or is
	// not visible to the token.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is returned when the remote throttles requests.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidRequest is returned when the remote rejects the request body,
	// e.g. a select option or property name it does not know.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrRemote is returned for any other remote failure.
	ErrRemote = errors.New("remote error")
)

// RequestError describes a failed remote call.
type RequestError struct {
	Method  string
	Path    string
	Status  int
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s %s: %d", e.Method, e.Path, e.Status)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap maps the HTTP status onto the sentinel errors.
func (e *RequestError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return ErrInvalidRequest
	default:
		return ErrRemote
	}
}

// IsUnauthorized returns true if the token was rejected.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNotFound returns true if the target does not exist or is not shared.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited returns true if the remote throttled the request.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsRemoteError returns true if err came back from the remote store.
func IsRemoteError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}
