package api

import (
	"errors"
	"fmt"
	"net/http"
)

// DefaultFailureMessage is used when the error envelope carries no message
const DefaultFailureMessage = "Request failed"

// RequestFailure is returned when the server answers with a non-success status
type RequestFailure struct {
	Message    string
	StatusCode int
	Code       string
}

// Error implements the error interface
func (e *RequestFailure) Error() string {
	if e.Message == "" {
		return DefaultFailureMessage
	}
	return e.Message
}

// Unauthorized reports whether the server rejected the credentials
func (e *RequestFailure) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// NetworkFailure is returned when no response could be obtained
type NetworkFailure struct {
	Method string
	URL    string
	Err    error
}

// Error implements the error interface
func (e *NetworkFailure) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the transport error
func (e *NetworkFailure) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status of a RequestFailure anywhere in err's chain, or 0
func StatusCode(err error) int {
	var rf *RequestFailure
	if errors.As(err, &rf) {
		return rf.StatusCode
	}
	return 0
}

// IsNetworkFailure reports whether err is, or wraps, a NetworkFailure
func IsNetworkFailure(err error) bool {
	var nf *NetworkFailure
	return errors.As(err, &nf)
}
