package schema

import (
	"errors"
	"fmt"
)

// Common errors returned by the resolver.
var (
	// ErrNotFound is returned when a pointer or entity is absent from the document.
	ErrNotFound = errors.New("reference not found")

	// ErrCircularRef is returned when dereferencing revisits a pointer already
	// on the resolution stack.
	ErrCircularRef = errors.New("circular reference")

	// ErrUnsupportedRef is returned for references outside the document.
	ErrUnsupportedRef = errors.New("unsupported reference")

	// ErrInvalidPatch is returned when a patch targets a property that does
	// not exist or is not an object schema.
	ErrInvalidPatch = errors.New("invalid schema patch")
)

// ResolutionError reports a failure to produce a schema for one entity.
// It is fatal to a run.
type ResolutionError struct {
	EntityRef string
	Pointer   string
	Err       error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Pointer != "" {
		return fmt.Sprintf("resolve schema %q at %s: %v", e.EntityRef, e.Pointer, e.Err)
	}
	return fmt.Sprintf("resolve schema %q: %v", e.EntityRef, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}
