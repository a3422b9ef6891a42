package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorUnauthorized is returned when the context user has no access to the
// requested business. Never retried, always surfaced.
var ErrorUnauthorized = errors.New("unauthorized")

// ErrorPeriodLocked is returned when a mutation's effective date falls inside
// a closed accounting period. The only remedy is an explicit reopen.
var ErrorPeriodLocked = errors.New("period closed")

// ErrorDeclarationFinalized protects legal-filing integrity: re-finalizing a
// declaration or mutating anything it froze fails with this error.
var ErrorDeclarationFinalized = errors.New("declaration already finalized")

// ErrorInvoiceImmutable is returned when editing a paid or cancelled invoice
// beyond cosmetic fields.
var ErrorInvoiceImmutable = errors.New("invoice can no longer be edited")

// ValidationError carries a field-level message for bad client input
// (unknown customer, duplicate manual invoice number, missing fiscal field).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field string, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
