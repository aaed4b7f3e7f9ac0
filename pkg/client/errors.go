package client

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassTimeout represents a request that exceeded its deadline.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassHTTP represents a non-2xx response.
	ErrorClassHTTP ErrorClass = "http"

	// ErrorClassTransport represents connection, DNS or TLS failures.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassMalformed represents a 2xx response whose body is not JSON.
	ErrorClassMalformed ErrorClass = "malformed"
)

// Sentinel errors matched by UpstreamError via errors.Is.
var (
	ErrTimeout           = errors.New("upstream timeout")
	ErrHTTPStatus        = errors.New("upstream http error")
	ErrTransport         = errors.New("upstream transport error")
	ErrMalformedResponse = errors.New("upstream malformed response")
)

// UpstreamError describes a failed upstream fetch.
// None of its classes are retried by the client.
type UpstreamError struct {
	Class      ErrorClass
	StatusCode int
	Status     string
	Path       string
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	switch {
	case e.Class == ErrorClassHTTP:
		return fmt.Sprintf("upstream %s error (status %d): %s: %s",
			e.Class, e.StatusCode, e.Status, e.Path)
	case e.Err != nil:
		return fmt.Sprintf("upstream %s error: %s: %v", e.Class, e.Path, e.Err)
	default:
		return fmt.Sprintf("upstream %s error: %s", e.Class, e.Path)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's class.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Class == ErrorClassTimeout
	case ErrHTTPStatus:
		return e.Class == ErrorClassHTTP
	case ErrTransport:
		return e.Class == ErrorClassTransport
	case ErrMalformedResponse:
		return e.Class == ErrorClassMalformed
	}
	return false
}

// ClassOf returns the class of err, or "" when err is not an upstream error.
func ClassOf(err error) ErrorClass {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Class
	}
	return ""
}
