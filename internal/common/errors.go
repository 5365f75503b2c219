// Package common defines shared constants and sentinel errors used across
// the storage, service and HTTP layers of MediaVault. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")

	// Upload validation errors.
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrUnsupportedType = errors.New("unsupported type")
	ErrValidation      = errors.New("validation error")

	// Backend I/O errors.
	ErrWrite = errors.New("storage write error")
	ErrRead  = errors.New("storage read error")

	// ErrConfiguration is returned when a storage backend is not configured
	// or cannot be reached before a migration.
	ErrConfiguration = errors.New("storage backend not configured")

	// ErrMigrationInProgress is returned when a tenant already has a running migration.
	ErrMigrationInProgress = errors.New("migration already in progress")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
