package errors

import (
	"errors"
	"fmt"
)

// Error codes for programmatic handling.
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeInputUnreadable   = "INPUT_UNREADABLE"
	CodeMissingColumn     = "MISSING_COLUMN"
	CodeMalformedRow      = "MALFORMED_ROW"
	CodeMalformedTime     = "MALFORMED_TIME"
	CodeNoData            = "NO_DATA"
	CodeRunNotFound       = "RUN_NOT_FOUND"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
)

// ReportError is a structured error with a code and actionable suggestion.
type ReportError struct {
	Code       string // machine-readable code (e.g. MISSING_COLUMN)
	Message    string // human-readable description
	Suggestion string // actionable fix
	Err        error  // wrapped underlying error
}

// Error implements the error interface.
func (e *ReportError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap supports errors.Is / errors.As.
func (e *ReportError) Unwrap() error {
	return e.Err
}

// New creates a ReportError with the given code and message.
func New(code, message string) *ReportError {
	return &ReportError{Code: code, Message: message}
}

// Wrap creates a ReportError wrapping an existing error.
func Wrap(code, message string, err error) *ReportError {
	return &ReportError{Code: code, Message: message, Err: err}
}

// WithSuggestion sets the suggestion and returns the same error.
func (e *ReportError) WithSuggestion(suggestion string) *ReportError {
	e.Suggestion = suggestion
	return e
}

// Is checks whether target matches this error's code.
func (e *ReportError) Is(target error) bool {
	var re *ReportError
	if errors.As(target, &re) {
		return e.Code == re.Code
	}
	return false
}

// AsCode extracts the ReportError code from an error, or "" if not a ReportError.
func AsCode(err error) string {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// Suggestion extracts the suggestion from an error, or "" if not a ReportError.
func Suggestion(err error) string {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Suggestion
	}
	return ""
}

// IsInputError reports whether err was caused by malformed or unreadable input,
// as opposed to an internal failure.
func IsInputError(err error) bool {
	switch AsCode(err) {
	case CodeInputUnreadable, CodeMissingColumn, CodeMalformedRow, CodeMalformedTime, CodeUnsupportedFormat:
		return true
	}
	return false
}
