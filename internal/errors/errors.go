// Package errors holds the sentinel errors shared across the repositories
// and services.
package errors

import "errors"

var (
	// Client errors
	ErrInvalidClient      = errors.New("invalid client")
	ErrInvalidScope       = errors.New("invalid scope")
	ErrInvalidRedirectURI = errors.New("invalid redirect URI")

	// Resource owner errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrUserNotVerified    = errors.New("user is not verified")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)
