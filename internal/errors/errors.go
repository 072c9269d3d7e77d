// Package errors defines the structured error type returned across metakit.
//
// Every failure carries an ErrorCode for programmatic handling. All codes are
// fatal: callers propagate them unmodified and nothing retries.
//
//	if cnserrors.IsCode(err, cnserrors.ErrCodeInsufficientResources) {
//	    // fewer qualifying GPUs than requested
//	}
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a structured error classification.
type ErrorCode string

const (
	// ErrCodeInsufficientResources indicates fewer qualifying devices than requested.
	ErrCodeInsufficientResources ErrorCode = "INSUFFICIENT_RESOURCES"
	// ErrCodeDistributedSetup indicates a collective was used before the process group was initialized.
	ErrCodeDistributedSetup ErrorCode = "DISTRIBUTED_SETUP"
	// ErrCodeNameMismatch indicates a parameter name absent from the tree or from an override map.
	ErrCodeNameMismatch ErrorCode = "NAME_MISMATCH"
	// ErrCodeMissingGradient indicates a hot-swap step on a leaf without a gradient.
	ErrCodeMissingGradient ErrorCode = "MISSING_GRADIENT"
	// ErrCodeShapeMismatch indicates a replacement tensor whose shape differs from the leaf.
	ErrCodeShapeMismatch ErrorCode = "SHAPE_MISMATCH"
	// ErrCodeInvalidRequest indicates malformed or invalid input.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	// ErrCodeUnavailable indicates a required tool or resource is not present.
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"
	// ErrCodeTimeout indicates an operation exceeded its time limit.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// StructuredError provides structured error information: a code for
// programmatic handling, a human-readable message, the underlying cause,
// and optional context for debugging.
type StructuredError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is and errors.As support.
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a new StructuredError with the given code and message.
func New(code ErrorCode, message string) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
	}
}

// NewWithContext creates a new StructuredError with context information.
func NewWithContext(code ErrorCode, message string, context map[string]any) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
		Context: context,
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(code ErrorCode, message string, cause error) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithContext wraps an error with a code, message and context.
func WrapWithContext(code ErrorCode, message string, cause error, context map[string]any) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: context,
	}
}

// CodeOf returns the code of the outermost StructuredError in err's chain,
// or "" when there is none.
func CodeOf(err error) ErrorCode {
	var se *StructuredError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether any StructuredError in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var se *StructuredError
		if !stderrors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Cause
	}
	return false
}
