package postgres

import (
	"context"
	"time"

	"github.com/and161185/userservice/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// SessionRepo implements SessionRepository using PostgreSQL.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a refresh token repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

const insertRefreshToken = `
INSERT INTO refresh_tokens (id, token, user_id, expires_at, revoked)
VALUES ($1, $2, $3, $4, false)`

// Rotate revokes all tokens of the owner and inserts rt in one transaction. The owner's
// user row is locked first so concurrent logins for one user serialize; a concurrent
// refresh reads either the pre- or post-rotation state, never a mix.
func (r *SessionRepo) Rotate(ctx context.Context, rt *model.RefreshToken) error {
	const lock = `SELECT id FROM users WHERE id=$1 FOR UPDATE`
	const revoke = `UPDATE refresh_tokens SET revoked = true WHERE user_id = $1 AND NOT revoked`

	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		var owner uuid.UUID
		if err := tx.QueryRow(ctx, lock, rt.UserID).Scan(&owner); err != nil {
			return classify(err)
		}
		if _, err := tx.Exec(ctx, revoke, rt.UserID); err != nil {
			return classify(err)
		}
		if _, err := tx.Exec(ctx, insertRefreshToken, rt.ID, rt.Token, rt.UserID, rt.ExpiresAt); err != nil {
			return classify(err)
		}
		return nil
	})
}

// GetByToken loads a refresh token by its value.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	const q = `
SELECT id, token, user_id, expires_at, revoked, created_at
FROM refresh_tokens WHERE token=$1`
	var rt model.RefreshToken
	err := r.db.Pool.QueryRow(ctx, q, token).Scan(&rt.ID, &rt.Token, &rt.UserID, &rt.ExpiresAt, &rt.Revoked, &rt.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &rt, nil
}

// RevokeAllForUser revokes every outstanding token of the user. Zero rows is not an error.
func (r *SessionRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	const q = `UPDATE refresh_tokens SET revoked = true WHERE user_id = $1 AND NOT revoked`
	tag, err := r.db.Pool.Exec(ctx, q, userID)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired purges tokens whose expiry is before the cutoff.
func (r *SessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const q = `DELETE FROM refresh_tokens WHERE expires_at < $1`
	tag, err := r.db.Pool.Exec(ctx, q, before)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}
