package repository

import (
	"context"
	"time"

	"github.com/and161185/userservice/internal/model"
	"github.com/gofrs/uuid/v5"
)

// SessionRepository is the durable record of outstanding refresh tokens.
type SessionRepository interface {
	// Rotate revokes every refresh token of rt.UserID and inserts rt, atomically.
	Rotate(ctx context.Context, rt *model.RefreshToken) error
	// GetByToken loads a refresh token by its opaque value.
	GetByToken(ctx context.Context, token string) (*model.RefreshToken, error)
	// RevokeAllForUser marks all of the user's tokens revoked and returns how many changed.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	// DeleteExpired removes tokens that expired before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
