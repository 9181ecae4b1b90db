package postgres

import (
	"context"
	"time"

	"github.com/and161185/userservice/internal/errs"
	"github.com/and161185/userservice/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, password, first_name, last_name, phone_number, role,
COALESCE(business_unit_id, ''), COALESCE(business_unit_name, ''), status, created_at, COALESCE(last_seen_at, created_at)`

const insertUser = `
INSERT INTO users (id, email, password, first_name, last_name, phone_number, role, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Create inserts a new user row. An absent phone number is stored as ''.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.db.Pool.Exec(ctx, insertUser, u.ID, u.Email, u.PwdHash, u.FirstName, u.LastName, u.PhoneNumber, u.Role, u.Status)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return classify(err)
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

// GetByEmail selects a user by email, case-insensitively.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email)=lower($1)`, email)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	var u model.User
	err := r.db.Pool.QueryRow(ctx, q, arg).Scan(
		&u.ID, &u.Email, &u.PwdHash, &u.FirstName, &u.LastName, &u.PhoneNumber, &u.Role,
		&u.BusinessUnitID, &u.BusinessUnitName, &u.Status, &u.CreatedAt, &u.LastSeenAt,
	)
	if err != nil {
		return nil, classify(err)
	}
	return &u, nil
}

// SetBusinessUnit assigns the unit and drops the name cached for the previous one.
func (r *UserRepo) SetBusinessUnit(ctx context.Context, id uuid.UUID, unitID string) error {
	const q = `
UPDATE users
SET business_unit_id = $2, business_unit_name = NULL
WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, id, unitID)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetBusinessUnitName stores name only while the user is still assigned to unitID,
// so a late response for a previous assignment cannot win.
func (r *UserRepo) SetBusinessUnitName(ctx context.Context, id uuid.UUID, unitID, name string) (bool, error) {
	const q = `
UPDATE users
SET business_unit_name = $3
WHERE id = $1 AND business_unit_id = $2`
	tag, err := r.db.Pool.Exec(ctx, q, id, unitID, name)
	if err != nil {
		return false, classify(err)
	}
	return tag.RowsAffected() > 0, nil
}

// TouchLastSeen moves last_seen_at forward; it never moves it back.
func (r *UserRepo) TouchLastSeen(ctx context.Context, email string, at time.Time) error {
	const q = `
UPDATE users
SET last_seen_at = GREATEST(last_seen_at, $2)
WHERE lower(email) = lower($1)`
	tag, err := r.db.Pool.Exec(ctx, q, email, at)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
