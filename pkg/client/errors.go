package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassAuth represents 401/403 credential errors.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassClient represents all other 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// ClassifyStatus maps an HTTP status code to its error class.
// Successful and informational codes map to the empty class. Redirects
// that reach a caller were not followed and count as client errors.
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorClassAuth
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 300 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	StatusCode int
	ErrorClass ErrorClass
	URL        string
	Body       string

	// RetryAfter is the server's Retry-After hint, zero when absent.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("coda %s error (status %d) for %s: %s", e.ErrorClass, e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("coda %s error (status %d) for %s", e.ErrorClass, e.StatusCode, e.URL)
}

// Fatal reports whether the error invalidates the whole run. Credential
// problems cannot be fixed by retrying or skipping a stream.
func (e *HTTPError) Fatal() bool {
	return e.ErrorClass == ErrorClassAuth
}

// Retryable reports whether a retry with backoff may succeed.
func (e *HTTPError) Retryable() bool {
	return shouldRetry(e.ErrorClass)
}

func (e *HTTPError) retryAfter() time.Duration {
	return e.RetryAfter
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// 4xx (including auth) are not going to change on their own
		return false
	}
}

// classOf extracts the error class from err. Anything that is not an
// HTTPError is a transport failure.
func classOf(err error) ErrorClass {
	var ce *cancelledError
	if errors.As(err, &ce) {
		return ""
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.ErrorClass
	}
	return ErrorClassNetwork
}
