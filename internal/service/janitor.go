package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/userservice/internal/metrics"
	"github.com/and161185/userservice/internal/repository"
)

// SessionJanitor periodically deletes expired refresh tokens.
type SessionJanitor struct {
	sessions repository.SessionRepository
	interval time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewSessionJanitor constructs a janitor; m may be nil.
func NewSessionJanitor(sessions repository.SessionRepository, interval time.Duration, log *zap.Logger, m *metrics.Metrics) *SessionJanitor {
	return &SessionJanitor{sessions: sessions, interval: interval, log: log, metrics: m, now: time.Now}
}

// Run purges once per interval until ctx is done.
func (j *SessionJanitor) Run(ctx context.Context) error {
	t := time.NewTicker(j.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			j.PurgeOnce(ctx)
		}
	}
}

// PurgeOnce deletes tokens that are already expired and returns how many went.
func (j *SessionJanitor) PurgeOnce(ctx context.Context) int64 {
	n, err := j.sessions.DeleteExpired(ctx, j.now())
	if err != nil {
		j.log.Warn("purge expired sessions", zap.Error(err))
		return 0
	}
	if n > 0 {
		j.log.Info("purged expired sessions", zap.Int64("count", n))
	}
	j.metrics.SessionsPurged(n)
	return n
}
