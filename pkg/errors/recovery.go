// Package errors provides comprehensive error handling utilities for opgrid.
//
// This file contains panic recovery utilities. Estimators run inside a search
// are user-supplied code; a panic in one candidate must surface as that
// candidate's error instead of taking down the whole search.

package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError represents an error that was created from a recovered panic.
type PanicError struct {
	// PanicValue is the original value passed to panic()
	PanicValue interface{}

	// StackTrace contains the stack trace at the time of panic
	StackTrace string

	// Operation identifies where the panic was recovered
	Operation string
}

// Error implements the error interface for PanicError.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.PanicValue.(error); ok {
		return err
	}
	return nil
}

// String provides detailed information including stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s",
		e.Operation, e.PanicValue, e.StackTrace)
}

// NewPanicError creates a new PanicError with the given operation context and panic value.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover converts a panic into an error assigned to *err. Use it with defer:
//
//	func (o *Observing) Fit(X, y mat.Matrix) (op Operator, err error) {
//	    defer Recover(&err, "Observing.Fit")
//	    ...
//	}
//
// An error already stored in *err is kept in the chain.
func Recover(err *error, operation string) {
	if r := recover(); r != nil {
		*err = fromPanic(*err, operation, r)
	}
}

// RecoverWith behaves like Recover and additionally hands the PanicError to
// onPanic before returning, so callers can report it (for example to an observer).
func RecoverWith(err *error, operation string, onPanic func(*PanicError)) {
	if r := recover(); r != nil {
		panicErr := NewPanicError(operation, r)
		*err = fromPanic(*err, operation, r)
		if onPanic != nil {
			onPanic(panicErr)
		}
	}
}

func fromPanic(existing error, operation string, r interface{}) error {
	if existing != nil {
		return fmt.Errorf("panic in %s: %v (original error: %w)", operation, r, existing)
	}
	return NewPanicError(operation, r)
}

// SafeExecute executes fn and converts any panic into a PanicError.
//
//	err := SafeExecute("candidate fit", func() error {
//	    return est.Fit(X, y)
//	})
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
