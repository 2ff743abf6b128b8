package spec

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrorCode categorizes generation errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ConversionError ErrorCode = "ConversionError"

	ParseError          ErrorCode = "ParseError"
	ReferenceError      ErrorCode = "ReferenceError"
	NamingConflictError ErrorCode = "NamingConflictError"
	ValidationError     ErrorCode = "ValidationError"
	ConfigurationError  ErrorCode = "ConfigurationError"
	NotSupportedError   ErrorCode = "NotSupportedError"
)

// SpecError is a structured error with the construct and location that triggered it.
type SpecError struct {
	Code    ErrorCode
	Message string
	// Location is the file path or URL of the document, when known.
	Location string
	// Pointer is a JSON pointer into the document, e.g. "#/paths/~1pets/get".
	Pointer string
	// Subject names the schema or operation involved.
	Subject string
	Cause   error
}

func (e *SpecError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Subject != "" {
		fmt.Fprintf(&b, " [%s]", e.Subject)
	}
	if e.Pointer != "" {
		fmt.Fprintf(&b, " at %s", e.Pointer)
	}
	return b.String()
}

func (e *SpecError) Unwrap() error { return e.Cause }

// Errorf builds a SpecError with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *SpecError {
	return &SpecError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// At records the JSON pointer of the offending construct.
func (e *SpecError) At(pointer string) *SpecError {
	e.Pointer = pointer
	return e
}

// For records the schema or operation name of the offending construct.
func (e *SpecError) For(subject string) *SpecError {
	e.Subject = subject
	return e
}

// Because attaches an underlying cause.
func (e *SpecError) Because(err error) *SpecError {
	e.Cause = err
	return e
}

// CodeOf returns the code of the first SpecError in err's chain, or "" when there is none.
func CodeOf(err error) ErrorCode {
	var se *SpecError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
