package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/coda-tap/pkg/client"
	"github.com/Sternrassler/coda-tap/pkg/pagination"
)

// RunError is a fatal error that ended the run.
type RunError struct {
	// Stream is the definition being processed when the run failed. Empty
	// for failures not tied to one stream, e.g. a sink that cannot be opened.
	Stream string

	Err error

	// PartialOutput reports whether records had already been handed to the
	// sink before the failure.
	PartialOutput bool
}

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := fmt.Sprintf("stream %s: %v", e.Stream, e.Err)
	if e.Stream == "" {
		msg = e.Err.Error()
	}
	if e.PartialOutput {
		msg += " (partial output emitted)"
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RunError) Unwrap() error {
	return e.Err
}

// StreamFailure is a failure contained to one definition's subtree for one
// parent record. The run continues with the next sibling.
type StreamFailure struct {
	Stream        string
	Path          string
	Err           error
	PartialOutput bool
}

// contained reports whether err aborts only the subtree it occurred in.
//
// Client errors (3xx and 4xx other than 401/403/429) and broken pagination
// are contained. Credential errors, retries that ran out, cancellation and
// anything unrecognized end the run.
func contained(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, client.ErrRetryExhausted) {
		return false
	}

	var he *client.HTTPError
	if errors.As(err, &he) {
		if he.Fatal() || he.Retryable() {
			return false
		}
		return he.ErrorClass == client.ErrorClassClient
	}

	return errors.Is(err, pagination.ErrRepeatedToken) ||
		errors.Is(err, pagination.ErrTooManyPages) ||
		errors.Is(err, pagination.ErrMalformedPage)
}

// errorClass labels err for logs and metrics.
func errorClass(err error) string {
	var he *client.HTTPError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &he):
		return string(he.ErrorClass)
	case errors.Is(err, client.ErrRetryExhausted):
		return string(client.ErrorClassNetwork)
	default:
		return "other"
	}
}
