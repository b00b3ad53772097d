package apperrors

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by services wraps exactly one of them,
// so transport may map it with errors.Is without knowing the details.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")

	// Startup misconfiguration, never returned from request handling
	ErrInvalidDuration = errors.New("invalid duration string")
)

var (
	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)
	ErrEmailTaken    = fmt.Errorf("%w: user with this email already registered", ErrConflict)
	ErrUsernameTaken = fmt.Errorf("%w: user with this username already registered", ErrConflict)

	// Deliberately the same message for "no such user" and "wrong password"
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)

	ErrRefreshTokenNotFound = fmt.Errorf("%w: refresh token not found", ErrUnauthorized)
	ErrRefreshTokenExpired  = fmt.Errorf("%w: refresh token is expired", ErrUnauthorized)
	ErrAccessTokenInvalid   = fmt.Errorf("%w: access token is invalid", ErrUnauthorized)
)
