// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/userservice/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides the user record access the auth and cache-sync paths need.
type UserRepository interface {
	// Create inserts a new user; a taken email yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by email (the token subject).
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// SetBusinessUnit assigns a unit and clears the cached unit name.
	SetBusinessUnit(ctx context.Context, id uuid.UUID, unitID string) error
	// SetBusinessUnitName stores a resolved name if the user still points at unitID.
	// It reports whether a row was updated.
	SetBusinessUnitName(ctx context.Context, id uuid.UUID, unitID, name string) (bool, error)
	// TouchLastSeen records activity for the user with the given email.
	TouchLastSeen(ctx context.Context, email string, at time.Time) error
}
