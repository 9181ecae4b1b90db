package limiter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/and161185/userservice/internal/errs"
)

// Querier is the subset of a pgx pool the limiter needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG keeps attempt counters in the login_attempts table.
type PG struct {
	q      Querier
	policy Policy
	now    func() time.Time
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(q Querier, p Policy) *PG {
	return &PG{q: q, policy: p, now: time.Now}
}

// Allow reports whether the pair is outside a lockout.
func (l *PG) Allow(ctx context.Context, identity string, ipHash []byte) (bool, time.Duration, error) {
	const q = `
SELECT COALESCE(blocked_until, 'epoch'::timestamptz)
FROM login_attempts WHERE identity=$1 AND ip_hash=$2`
	var blockedUntil time.Time
	err := l.q.QueryRow(ctx, q, normalize(identity), ipHash).Scan(&blockedUntil)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	case err != nil:
		return false, 0, errs.Transient(err)
	}
	if now := l.now(); blockedUntil.After(now) {
		return false, blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success forgets the pair's failures.
func (l *PG) Success(ctx context.Context, identity string, ipHash []byte) error {
	const q = `DELETE FROM login_attempts WHERE identity=$1 AND ip_hash=$2`
	if _, err := l.q.Exec(ctx, q, normalize(identity), ipHash); err != nil {
		return errs.Transient(err)
	}
	return nil
}

// Failure counts an attempt within the sliding window and blocks at the threshold.
func (l *PG) Failure(ctx context.Context, identity string, ipHash []byte) (bool, time.Duration, error) {
	now := l.now()
	id := normalize(identity)

	const q = `
INSERT INTO login_attempts (identity, ip_hash, fail_count, updated_at)
VALUES ($1, $2, 1, $3)
ON CONFLICT (identity, ip_hash) DO UPDATE
SET
  fail_count = CASE WHEN login_attempts.updated_at < $4 THEN 1 ELSE login_attempts.fail_count + 1 END,
  updated_at = $3
RETURNING fail_count`
	var fails int
	if err := l.q.QueryRow(ctx, q, id, ipHash, now, now.Add(-l.policy.Window)).Scan(&fails); err != nil {
		return false, 0, errs.Transient(err)
	}
	if l.policy.MaxFailures <= 0 || fails < l.policy.MaxFailures {
		return false, 0, nil
	}

	const block = `UPDATE login_attempts SET blocked_until=$3 WHERE identity=$1 AND ip_hash=$2`
	if _, err := l.q.Exec(ctx, block, id, ipHash, now.Add(l.policy.BlockFor)); err != nil {
		return false, 0, errs.Transient(err)
	}
	return true, l.policy.BlockFor, nil
}

func normalize(identity string) string { return strings.ToLower(strings.TrimSpace(identity)) }
