package billing

import "errors"

// ErrNotFound reports that a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports a business-rule violation. The operation that
// returned it has not applied any of its effects.
type ValidationError struct {
	Reason string
}

func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string { return e.Reason }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
