package errors

import (
	"errors"
	"fmt"
)

// Common error types for the gateway console
var (
	// Credential errors
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrRenewalFailed          = errors.New("credential renewal failed")

	// Invitation errors
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrInvitationNotPending = errors.New("invitation is no longer pending")
	ErrIncompleteLink       = errors.New("invitation link is missing information")
	ErrMissingOrganization  = errors.New("organization for the invitation is not resolved")
	ErrActionRejected       = errors.New("invitation action rejected")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// Sign-in flow errors
	ErrSignInStateNotFound = errors.New("sign-in state not found")
	ErrSignInStateExpired  = errors.New("sign-in state expired")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
