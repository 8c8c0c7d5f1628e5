package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected during dispatch.
//
// Runtime errors include:
//   - Unknown call: Name is neither an atom nor an existing collection
//   - Malformed encoding: Call string suffix is not a JSON array
//   - Incomplete call: Expression ran out of arguments before its atom did
//   - Invalid argument: Value has the wrong shape for where it was used
//
// Storage and cipher failures are never converted to RuntimeError; they
// propagate with their own error values.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Name is the call or collection name involved, if any.
	Name string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownCall indicates a name matched no atom and no collection.
	ErrCodeUnknownCall RuntimeErrorCode = "UNKNOWN_CALL"

	// ErrCodeMalformedEncoding indicates a call string could not be decoded.
	ErrCodeMalformedEncoding RuntimeErrorCode = "MALFORMED_ENCODING"

	// ErrCodeIncompleteCall indicates an expression ended with arguments
	// still missing.
	ErrCodeIncompleteCall RuntimeErrorCode = "INCOMPLETE_CALL"

	// ErrCodeInvalidArgument indicates a value of the wrong shape.
	ErrCodeInvalidArgument RuntimeErrorCode = "INVALID_ARGUMENT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Name != "" {
		msg += fmt.Sprintf(" (call=%q)", e.Name)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first RuntimeError in err's chain, or ""
// if there is none. Uses errors.As to handle wrapped errors.
func CodeOf(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsUnknownCall returns true if the error is an unknown call error.
func IsUnknownCall(err error) bool {
	return CodeOf(err) == ErrCodeUnknownCall
}

// IsMalformed returns true if the error is a malformed encoding error.
func IsMalformed(err error) bool {
	return CodeOf(err) == ErrCodeMalformedEncoding
}

// NewUnknownCallError creates a RuntimeError for an unresolvable name.
func NewUnknownCallError(name string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownCall,
		Message: "no atom or collection with this name",
		Name:    name,
		Err:     cause,
	}
}

// NewMalformedError creates a RuntimeError for an undecodable call string.
func NewMalformedError(input string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeMalformedEncoding,
		Message: "call string cannot be decoded",
		Details: map[string]string{"input": input},
		Err:     cause,
	}
}

// newOverboundError reports a call string carrying as many arguments as
// its atom takes. Dispatch never produces one; it can only come from a
// caller.
func newOverboundError(name string, bound, arity int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeMalformedEncoding,
		Message: fmt.Sprintf("partial call binds %d arguments, atom takes %d", bound, arity),
		Name:    name,
		Details: map[string]string{
			"bound": fmt.Sprintf("%d", bound),
			"arity": fmt.Sprintf("%d", arity),
		},
	}
}

// NewIncompleteCallError creates a RuntimeError for an expression that
// supplied fewer arguments than its atom takes.
func NewIncompleteCallError(name string, bound, arity int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeIncompleteCall,
		Message: fmt.Sprintf("call has %d of %d arguments", bound, arity),
		Name:    name,
		Details: map[string]string{
			"bound": fmt.Sprintf("%d", bound),
			"arity": fmt.Sprintf("%d", arity),
		},
	}
}

// NewInvalidArgumentError creates a RuntimeError for a misshapen value.
func NewInvalidArgumentError(name, message string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidArgument,
		Message: message,
		Name:    name,
		Err:     cause,
	}
}
