// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation")

	// ErrConflict indicates an insert collided with an existing id.
	ErrConflict = errors.New("conflict")

	// ErrUnauthenticated indicates a protected operation was called without an identity.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Token and identity sentinels.
var (
	// ErrTokenMalformed indicates the token could not be decoded at all.
	ErrTokenMalformed = errors.New("token malformed")

	// ErrSignatureInvalid indicates the token was decoded but its signature does not verify.
	ErrSignatureInvalid = errors.New("token signature invalid")

	// ErrTokenExpired indicates a correctly signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrPrincipalNotFound indicates the identity store has no such username.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrAuthenticationFailed is the single failure class surfaced by login.
	ErrAuthenticationFailed = errors.New("authentication failed")
)
