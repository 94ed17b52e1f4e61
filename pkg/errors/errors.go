// Package errors provides common domain error types for the recents module.
//
// Sentinel errors describe conditions callers branch on with errors.Is().
// StoreError wraps any failure coming back from the call-history store so
// that a failed query is never confused with an empty page.
//
// Usage:
//
//	import rerrors "github.com/otherjamesbrown/recents/pkg/errors"
//
//	if rerrors.IsStoreFailure(err) {
//	    // the store itself failed; the page is incomplete
//	}
package errors

import (
	"errors"
	"fmt"
)

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrPermissionDenied indicates the caller was refused access to the call history.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrStoreFailure indicates the underlying record store failed (I/O, query error).
	ErrStoreFailure = errors.New("store failure")

	// ErrClosed indicates the component has been shut down.
	ErrClosed = errors.New("closed")
)

// StoreError records which store operation failed.
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError wraps err as a failure of the named store operation.
// A nil err yields a nil error.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is makes every StoreError match ErrStoreFailure.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreFailure
}

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsPermissionDenied reports whether any error in err's chain is ErrPermissionDenied.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsStoreFailure reports whether any error in err's chain is a store failure.
func IsStoreFailure(err error) bool {
	return errors.Is(err, ErrStoreFailure)
}

// IsClosed reports whether any error in err's chain is ErrClosed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
