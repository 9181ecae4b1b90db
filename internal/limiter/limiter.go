// Package limiter throttles password logins per (identity, client) with temporary lockouts.
package limiter

import (
	"context"
	"crypto/sha256"
	"net"
	"strings"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and the remaining lockout.
	Allow(ctx context.Context, identity string, ipHash []byte) (bool, time.Duration, error)
	// Success clears the failure history after a successful login.
	Success(ctx context.Context, identity string, ipHash []byte) error
	// Failure records a failed attempt; reports whether the pair is now blocked.
	Failure(ctx context.Context, identity string, ipHash []byte) (bool, time.Duration, error)
}

// Policy configures the lockout.
type Policy struct {
	Window      time.Duration // failures older than this are forgotten
	MaxFailures int           // failures within Window that trigger a block
	BlockFor    time.Duration
}

// HashIP returns a stable hash of the client host (port stripped) so raw addresses are never stored.
func HashIP(addr string) []byte {
	host := strings.TrimSpace(addr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	sum := sha256.Sum256([]byte(host))
	return sum[:]
}

// Nop never limits. Used when lockouts are disabled.
type Nop struct{}

// Allow always allows.
func (Nop) Allow(context.Context, string, []byte) (bool, time.Duration, error) { return true, 0, nil }

// Success does nothing.
func (Nop) Success(context.Context, string, []byte) error { return nil }

// Failure never blocks.
func (Nop) Failure(context.Context, string, []byte) (bool, time.Duration, error) { return false, 0, nil }
