// Package errs defines the coded error type shared by every stage of the
// wall analysis pipeline.
//
// Each failure carries a machine-readable Code so that the CLI and the HTTP
// API can tell "no wall found, check the image" apart from "input values are
// invalid, fix and resubmit":
//
//	err := errs.New(errs.CodeUnsupportedFormat, "cannot handle %q", mime)
//	if errs.Is(err, errs.CodeUnsupportedFormat) {
//	    // reject upload
//	}
package errs

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// Loader failures.
	CodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	CodeDecodeError       Code = "DECODE_ERROR"
	CodeEmptyDocument     Code = "EMPTY_DOCUMENT"

	// Selector failure for blank rasters.
	CodeNoStructureDetected Code = "NO_STRUCTURE_DETECTED"

	// Validation failures.
	CodeOutOfBounds       Code = "OUT_OF_BOUNDS"
	CodeInvalidDimensions Code = "INVALID_DIMENSIONS"
	CodeInvalidInput      Code = "INVALID_INPUT"

	CodeNoBackend Code = "NO_BACKEND"
	CodeInternal  Code = "INTERNAL_ERROR"
)

// Category groups codes by what the caller should do about them.
type Category string

const (
	CategoryInput     Category = "input"
	CategoryDetection Category = "detection"
	CategoryFormat    Category = "format"
	CategoryInternal  Category = "internal"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around an existing cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// coder is implemented by richer error types that still map onto a Code.
type coder interface {
	ErrorCode() Code
}

// GetCode extracts the code from err, or "" if err carries none.
func GetCode(err error) Code {
	if err == nil {
		return ""
	}
	var c coder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// UserMessage returns the message without the code prefix.
func UserMessage(err error) string {
	var oob *OutOfBoundsError
	if errors.As(err, &oob) {
		return oob.Error()
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// CategoryOf classifies err for user-facing reporting.
func CategoryOf(err error) Category {
	switch GetCode(err) {
	case CodeOutOfBounds, CodeInvalidDimensions, CodeInvalidInput:
		return CategoryInput
	case CodeNoStructureDetected:
		return CategoryDetection
	case CodeUnsupportedFormat, CodeDecodeError, CodeEmptyDocument:
		return CategoryFormat
	default:
		return CategoryInternal
	}
}

// OutOfBoundsError reports a manual opening that leaves the wall.
type OutOfBoundsError struct {
	Index  int     // zero-based opening index
	Side   string  // left, right, bottom or top
	Excess float64 // how far past the boundary, in input units
	Kind   string  // "opening" or "block"
}

// Error implements the error interface.
func (e *OutOfBoundsError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "opening"
	}
	return fmt.Sprintf("%s %d exceeds the %s wall boundary by %.2f", kind, e.Index, e.Side, e.Excess)
}

// ErrorCode maps the error onto CodeOutOfBounds.
func (e *OutOfBoundsError) ErrorCode() Code {
	return CodeOutOfBounds
}
