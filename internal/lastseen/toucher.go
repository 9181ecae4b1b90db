// Package lastseen records user activity off the request path.
package lastseen

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Store persists the last-seen timestamp of the user with the given email.
type Store interface {
	TouchLastSeen(ctx context.Context, email string, at time.Time) error
}

// DropCounter is notified when an update is discarded on a full queue.
type DropCounter interface {
	LastSeenDropped()
}

type touch struct {
	email string
	at    time.Time
}

// Toucher owns a bounded queue drained by a single worker. Touch never blocks:
// when the queue is full the update is dropped. Write failures are logged and swallowed.
type Toucher struct {
	store   Store
	log     *zap.Logger
	drops   DropCounter
	queue   chan touch
	timeout time.Duration
	now     func() time.Time
}

// NewToucher builds a Toucher with a queue of size entries. drops may be nil.
func NewToucher(store Store, log *zap.Logger, drops DropCounter, size int) *Toucher {
	if size <= 0 {
		size = 1
	}
	return &Toucher{
		store:   store,
		log:     log,
		drops:   drops,
		queue:   make(chan touch, size),
		timeout: 2 * time.Second,
		now:     time.Now,
	}
}

// Touch enqueues an update for email and reports whether it was accepted.
func (t *Toucher) Touch(email string) bool {
	select {
	case t.queue <- touch{email: email, at: t.now()}:
		return true
	default:
		if t.drops != nil {
			t.drops.LastSeenDropped()
		}
		return false
	}
}

// Run drains the queue until ctx is done. Each write gets its own deadline that
// does not derive from any request.
func (t *Toucher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-t.queue:
			t.write(u)
		}
	}
}

func (t *Toucher) write(u touch) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	if err := t.store.TouchLastSeen(ctx, u.email, u.at); err != nil {
		t.log.Warn("last seen update failed", zap.String("email", u.email), zap.Error(err))
	}
}
