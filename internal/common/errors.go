// Package common defines shared constants and sentinel errors used across
// client and server layers of listsync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors.
	ErrInternal        = errors.New("internal error")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")

	// Validation errors (missing or empty required fields).
	ErrValidation = errors.New("validation error")

	// Mutation preconditions.
	ErrListNotEmpty = errors.New("list is not empty")
	ErrUserNotFound = errors.New("no user with that email")
	ErrEmailTaken   = errors.New("email already registered")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
