package domain

import (
	"errors"
	"fmt"
)

// ErrSourceNotFound indicates a switch request named a source that does not
// resolve to a readable file. No session change happens.
var ErrSourceNotFound = errors.New("source not found")

// ValidationError rejects a request before any state is mutated.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Invalid returns a ValidationError with the given reason.
func Invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// EncoderError reports a nonzero exit from the external encoder, in either live
// or single-shot mode, with whatever diagnostics it wrote to stderr.
type EncoderError struct {
	Op     string
	Err    error
	Stderr string
}

func (e *EncoderError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("encoder %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("encoder %s: %v: %s", e.Op, e.Err, e.Stderr)
}

func (e *EncoderError) Unwrap() error {
	return e.Err
}
