package postgres

import (
	"context"
	"errors"

	"github.com/and161185/userservice/internal/errs"
)

// UnitNameRepo is the externally backed business-unit name cache. It shares
// the cache.Store method set so it can replace the in-memory store.
type UnitNameRepo struct{ db *DB }

// NewUnitNameRepo constructs the Postgres-backed name cache.
func NewUnitNameRepo(db *DB) *UnitNameRepo { return &UnitNameRepo{db: db} }

const upsertUnitName = `
INSERT INTO business_unit_names (id, name, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = now()`

// Put upserts the name of a business unit.
func (r *UnitNameRepo) Put(ctx context.Context, id, name string) error {
	_, err := r.db.Pool.Exec(ctx, upsertUnitName, id, name)
	return classify(err)
}

// Get returns the cached name; ok is false when nothing is cached.
func (r *UnitNameRepo) Get(ctx context.Context, id string) (string, bool, error) {
	const q = `SELECT name FROM business_unit_names WHERE id=$1`
	var name string
	err := classify(r.db.Pool.QueryRow(ctx, q, id).Scan(&name))
	switch {
	case err == nil:
		return name, true, nil
	case errors.Is(err, errs.ErrNotFound):
		return "", false, nil
	default:
		return "", false, err
	}
}

// Remove deletes the entry; removing a missing id is a no-op.
func (r *UnitNameRepo) Remove(ctx context.Context, id string) error {
	const q = `DELETE FROM business_unit_names WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id)
	return classify(err)
}
