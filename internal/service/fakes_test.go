package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/and161185/userservice/internal/crypto"
	"github.com/and161185/userservice/internal/errs"
	"github.com/and161185/userservice/internal/limiter"
	"github.com/and161185/userservice/internal/model"
	"github.com/and161185/userservice/internal/repository"
)

const testPassword = "secret"

// testHash is computed once; argon2id is deliberately expensive.
var testHash = sync.OnceValue(func() string {
	h, err := pkgcrypto.HashPassword(testPassword)
	if err != nil {
		panic(err)
	}
	return h
})

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*model.User

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{byEmail: map[string]*model.User{}}
	for _, u := range users {
		f.byEmail[strings.ToLower(u.Email)] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byEmail[u.Email]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byEmail[u.Email] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) SetBusinessUnit(_ context.Context, id uuid.UUID, unitID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			u.BusinessUnitID, u.BusinessUnitName = unitID, ""
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeUsers) SetBusinessUnitName(_ context.Context, id uuid.UUID, unitID, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id && u.BusinessUnitID == unitID {
			u.BusinessUnitName = name
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) TouchLastSeen(_ context.Context, email string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return errs.ErrNotFound
	}
	if at.After(u.LastSeenAt) {
		u.LastSeenAt = at
	}
	return nil
}

type fakeSessions struct {
	mu      sync.Mutex
	byToken map[string]*model.RefreshToken

	rotateErr error
	purged    int64
}

var _ repository.SessionRepository = (*fakeSessions)(nil)

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byToken: map[string]*model.RefreshToken{}}
}

func (f *fakeSessions) Rotate(_ context.Context, rt *model.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rotateErr != nil {
		return f.rotateErr
	}
	for _, old := range f.byToken {
		if old.UserID == rt.UserID {
			old.Revoked = true
		}
	}
	cpy := *rt
	f.byToken[rt.Token] = &cpy
	return nil
}

func (f *fakeSessions) GetByToken(_ context.Context, token string) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.byToken[token]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *rt
	return &c, nil
}

func (f *fakeSessions) RevokeAllForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, rt := range f.byToken {
		if rt.UserID == userID && !rt.Revoked {
			rt.Revoked = true
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, rt := range f.byToken {
		if rt.ExpiresAt.Before(before) {
			delete(f.byToken, k)
			n++
		}
	}
	f.purged += n
	return n, nil
}

// active counts usable tokens of userID at now.
func (f *fakeSessions) active(userID uuid.UUID, now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rt := range f.byToken {
		if rt.UserID == userID && rt.Active(now) {
			n++
		}
	}
	return n
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return nil
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

type fakeLookups struct {
	mu   sync.Mutex
	reqs []model.NameLookupRequest
}

var _ NameLookups = (*fakeLookups)(nil)

func (f *fakeLookups) RequestNameLookup(_ context.Context, userID, unitID string) {
	f.mu.Lock()
	f.reqs = append(f.reqs, model.NameLookupRequest{UserID: userID, BusinessUnitID: unitID})
	f.mu.Unlock()
}

// clock is a manually advanced time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Now().Truncate(time.Second)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newUser(email, role string) *model.User {
	return &model.User{
		ID:      uuid.Must(uuid.NewV4()),
		Email:   email,
		PwdHash: testHash(),
		Role:    role,
		Status:  model.StatusActive,
	}
}
