package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error taxonomy. Stores and services wrap these; handlers map them to HTTP
// statuses with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// PublicError carries a message that is safe to show to API clients.
type PublicError struct {
	Kind error
	Msg  string
}

func (e *PublicError) Error() string { return e.Msg }

func (e *PublicError) Unwrap() error { return e.Kind }

// Invalid returns a Validation error whose message is returned to the client.
func Invalid(msg string) error { return &PublicError{Kind: ErrValidation, Msg: msg} }

// Invalidf is Invalid with formatting.
func Invalidf(format string, args ...any) error {
	return Invalid(fmt.Sprintf(format, args...))
}

// NotFound returns a NotFound error naming the missing entity.
func NotFound(what string) error { return &PublicError{Kind: ErrNotFound, Msg: what + " not found"} }

// Forbidden returns a Forbidden error with a client-safe reason.
func Forbidden(msg string) error { return &PublicError{Kind: ErrForbidden, Msg: msg} }

// Conflict returns a Conflict error for a duplicate unique field.
func Conflict(msg string) error { return &PublicError{Kind: ErrConflict, Msg: msg} }

// InsufficientStock reports the product that could not cover the requested quantity.
func InsufficientStock(productName string, have, want int) error {
	return &PublicError{
		Kind: ErrInsufficientStock,
		Msg:  fmt.Sprintf("insufficient stock for %s (available %d, requested %d)", productName, have, want),
	}
}

// PublicMessage returns the client-facing message of err, if it has one.
func PublicMessage(err error) (string, bool) {
	var pe *PublicError
	if errors.As(err, &pe) {
		return pe.Msg, true
	}
	return "", false
}
