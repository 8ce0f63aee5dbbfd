package services

import "errors"

var (
	// ErrIdentityTaken is returned when registering an email that already
	// has an account.
	ErrIdentityTaken = errors.New("identity already taken")

	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password. The two cases are deliberately merged so responses carry
	// no user-enumeration signal.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionNotFound is returned when a session token does not resolve,
	// either because it was never issued, was destroyed, or has expired.
	ErrSessionNotFound = errors.New("session not found")

	// ErrForbidden is returned when an authenticated user acts on a movie
	// owned by someone else.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation wraps field-validation failures. Unlike storage faults,
	// these are safe to echo back to the client.
	ErrValidation = errors.New("validation failed")
)
