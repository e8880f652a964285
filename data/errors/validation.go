package errors

import "errors"

// ValidationError marks malformed caller input. Surfaced as-is,
// never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "vgate: validation: " + e.Message
}

// Validation creates a validation error from a format string.
func Validation(msg string, args ...any) *ValidationError {
	return &ValidationError{Message: format(nil, msg, args...)}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return As(err, &ve)
}

// Re-exported stdlib helpers so callers need only one errors import.
func Is(err, target error) bool     { return errors.Is(err, target) }
func As(err error, target any) bool { return errors.As(err, target) }
