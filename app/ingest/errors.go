package ingest

import (
	"errors"
	"fmt"
)

// ValidationError rejects malformed caller input on an on-demand trigger.
// It is raised before any side effects.
type ValidationError struct {
	msg      string
	notFound bool
}

func (e *ValidationError) Error() string {
	return e.msg
}

// NotFound reports whether the input referenced an unknown entity, as
// opposed to being malformed.
func (e *ValidationError) NotFound() bool {
	return e.notFound
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...), notFound: true}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
