// Package apperr holds the error taxonomy shared by the services and the API layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrOwnershipMismatch  = errors.New("ownership mismatch")
	ErrOwnershipViolation = errors.New("ownership violation")
	ErrValidation         = errors.New("validation error")

	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrWishlistNotFound = fmt.Errorf("wishlist %w", ErrNotFound)
	ErrWishNotFound     = fmt.Errorf("wish %w", ErrNotFound)
)

// Validation wraps ErrValidation with a caller facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Transition wraps ErrInvalidTransition with a caller facing message.
func Transition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// IsClientError reports whether err was caused by the caller rather than the store.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrOwnershipMismatch) ||
		errors.Is(err, ErrOwnershipViolation)
}
