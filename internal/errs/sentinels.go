// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested user or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMalformed indicates a token or message that cannot be decoded.
	ErrMalformed = errors.New("malformed")

	// ErrInvalidSignature indicates a token signed with another key or tampered with.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrExpired indicates an expired credential. Revoked refresh tokens report it too.
	ErrExpired = errors.New("expired or revoked")

	// ErrInvalidCredential indicates a password mismatch.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates a missing principal or insufficient roles.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated principal acting outside its rights.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput indicates a request that fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransient marks storage/broker failures that are safe to retry.
	ErrTransient = errors.New("transient")

	// ErrWeakKey is a fatal configuration error: signing key below the algorithm minimum.
	ErrWeakKey = errors.New("signing key too short")
)

// Transient wraps err so that errors.Is matches both ErrTransient and the cause.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }
