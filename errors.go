package signon

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotLoggedIn is returned by calls that need a session before Login succeeded
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrUnauthorized is matched by API errors with status 401
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is matched by API errors with status 403
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is matched by API errors with status 404
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is matched by API errors with status 429
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable is matched by API errors with status 503
	ErrUnavailable = errors.New("service unavailable")
)

// APIError is a non-2xx response from the service
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter int // seconds, set on 429
}

func (e *APIError) Error() string {
	return fmt.Sprintf("signon: %d %s", e.StatusCode, e.Message)
}

// Unwrap lets callers match on the sentinel for the status code
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	}
	return nil
}
