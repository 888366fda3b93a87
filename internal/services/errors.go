package services

import (
	"errors"

	"github.com/boogle-events/apiserver/internal/store"
)

var (
	// ErrValidation marks bad input. Wrapped errors carry a message that is
	// safe to show to the caller.
	ErrValidation = errors.New("validation failed")

	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("access denied")
	ErrNotFound           = store.ErrNotFound

	ErrEventNotFound = errors.New("event not found")
	ErrUserNotFound  = errors.New("user not found")

	ErrTicketUnavailable = errors.New("ticket type not available or sold out")
	ErrAlreadyRegistered = errors.New("user already registered for this event")
	ErrEmailTaken        = errors.New("email already in use")
)

// IsValidation reports whether err is a client input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict reports whether err violates a business rule on existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrTicketUnavailable) ||
		errors.Is(err, ErrAlreadyRegistered) ||
		errors.Is(err, ErrEmailTaken)
}

// IsNotFound reports whether err refers to a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrEventNotFound) || errors.Is(err, ErrUserNotFound)
}

// notFound maps the store's sentinel onto a resource-specific one.
func notFound(err, resource error) error {
	if errors.Is(err, store.ErrNotFound) {
		return resource
	}
	return err
}
