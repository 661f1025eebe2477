package models

import (
	"errors"
	"fmt"
)

// ValidationError marks a malformed client request. No upstream call is
// attempted once one is raised.
type ValidationError struct {
	reason error
}

func NewValidationError(format string, args ...interface{}) ValidationError {
	return ValidationError{reason: fmt.Errorf(format, args...)}
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
