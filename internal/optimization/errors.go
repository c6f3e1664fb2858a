package optimization

import (
	"errors"
	"fmt"
)

// Sentinel errors for the search taxonomy. Callers match these with
// errors.Is; the *Error wrapper carries the human-readable context.
var (
	// ErrInvalidInterval reports malformed input bounds (low >= high,
	// zero width included) or a non-positive tolerance.
	ErrInvalidInterval = errors.New("invalid search interval")

	// ErrUnknownMethod reports a method selector outside the registered set.
	ErrUnknownMethod = errors.New("unknown optimization method")

	// ErrNotConverged reports that the iteration cap was reached before
	// the tolerance was met. Recoverable: raise the cap or opt into
	// best-effort mode.
	ErrNotConverged = errors.New("search did not converge")
)

// Error represents a search error with context
// that can be wrapped with additional information.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}

	if e.Err != nil {
		if prefix != "" {
			return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates a new search error with the given message.
func NewError(message string) *Error {
	return &Error{
		Message: message,
	}
}

// NewErrorf creates a new search error with formatted message.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapErrorf wraps an existing error with additional formatted context.
// If err is nil, WrapErrorf returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// InvalidIntervalError builds an ErrInvalidInterval for the given bounds.
func InvalidIntervalError(low, high float64) *Error {
	return WrapErrorf(ErrInvalidInterval, "bounds [%v, %v] do not satisfy low < high", low, high)
}

// UnknownMethodError builds an ErrUnknownMethod for the given selector.
func UnknownMethodError(method string) *Error {
	return WrapErrorf(ErrUnknownMethod, "method %q is not registered", method)
}

// NotConvergedError builds an ErrNotConverged describing the final width.
func NotConvergedError(width, tolerance float64, iterations int) *Error {
	return WrapErrorf(ErrNotConverged,
		"interval width %v above tolerance %v after %d iterations", width, tolerance, iterations)
}

// IsSearchError checks if an error is of type Error.
// If the error is a search error, it returns the error and true.
// Otherwise, it returns nil and false.
func IsSearchError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
