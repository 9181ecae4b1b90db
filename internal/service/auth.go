// Package service contains application services for authentication, sessions and user records.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/and161185/userservice/internal/crypto"
	"github.com/and161185/userservice/internal/errs"
	"github.com/and161185/userservice/internal/ids"
	"github.com/and161185/userservice/internal/limiter"
	"github.com/and161185/userservice/internal/model"
	"github.com/and161185/userservice/internal/repository"
	"github.com/and161185/userservice/internal/token"
)

// AuthService defines registration and the session lifecycle.
type AuthService interface {
	// Register creates a new user with a hashed password.
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	// Login checks the password, rotates the user's refresh token and mints a token pair.
	Login(ctx context.Context, identity, password, ip string) (model.Tokens, model.Principal, error)
	// Refresh mints a new access token for an active refresh token. The refresh token is reused.
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
	// Logout revokes every refresh token of the user. Idempotent.
	Logout(ctx context.Context, userID uuid.UUID) error
	// LogoutPrincipal resolves the principal to its user and logs it out.
	LogoutPrincipal(ctx context.Context, p model.Principal) error
}

// RegisterInput is the data accepted at sign-up.
type RegisterInput struct {
	Email                 string
	Password              string
	FirstName             string
	LastName              string
	PhoneNumber           string
	PrivacyPolicyAccepted bool
}

type AuthServiceImpl struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	codec    *token.Codec
	lim      limiter.Limiter
	now      func() time.Time
}

// Option customizes AuthServiceImpl.
type Option func(*AuthServiceImpl)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *AuthServiceImpl) { s.now = now }
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, sessions repository.SessionRepository, codec *token.Codec, lim limiter.Limiter, opts ...Option) *AuthServiceImpl {
	s := &AuthServiceImpl{users: users, sessions: sessions, codec: codec, lim: lim, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates an EMPLOYEE account. Privacy policy acceptance is mandatory.
func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", errs.ErrInvalidInput)
	}
	if !in.PrivacyPolicyAccepted {
		return nil, fmt.Errorf("%w: privacy policy must be accepted", errs.ErrInvalidInput)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	hash, err := pkgcrypto.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:          uid,
		Email:       email,
		PwdHash:     hash,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		Role:        model.RoleEmployee,
		Status:      model.StatusActive,
		CreatedAt:   s.now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login authenticates with rate limiting by (identity, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, identity, password, ip string) (model.Tokens, model.Principal, error) {
	identity = normalizeEmail(identity)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, identity, ipHash)
	if err != nil {
		return model.Tokens{}, model.Principal{}, err
	}
	if !allowed {
		return model.Tokens{}, model.Principal{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, identity)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return model.Tokens{}, model.Principal{}, s.failed(ctx, identity, ipHash, errs.ErrNotFound)
	case err != nil:
		return model.Tokens{}, model.Principal{}, err
	}
	if !pkgcrypto.VerifyPassword(password, u.PwdHash) {
		return model.Tokens{}, model.Principal{}, s.failed(ctx, identity, ipHash, errs.ErrInvalidCredential)
	}

	// best-effort reset
	_ = s.lim.Success(ctx, identity, ipHash)

	now := s.now()
	access, exp, err := s.codec.IssueAccess(u.Email, u.Roles(), now)
	if err != nil {
		return model.Tokens{}, model.Principal{}, err
	}
	refresh, refreshExp, err := s.codec.IssueRefresh(u.Email, now)
	if err != nil {
		return model.Tokens{}, model.Principal{}, err
	}
	rt := &model.RefreshToken{
		ID:        ids.NewAt(now),
		Token:     refresh,
		UserID:    u.ID,
		ExpiresAt: refreshExp,
	}
	if err := s.sessions.Rotate(ctx, rt); err != nil {
		return model.Tokens{}, model.Principal{}, err
	}
	return model.Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, u.Principal(), nil
}

// failed records a failed attempt; a lockout takes precedence over the cause.
func (s *AuthServiceImpl) failed(ctx context.Context, identity string, ipHash []byte, cause error) error {
	if blocked, _, ferr := s.lim.Failure(ctx, identity, ipHash); ferr == nil && blocked {
		return errs.ErrRateLimited
	}
	return cause
}

// Refresh verifies the stored token and mints a new access token from the current user record.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	// a value that does not verify as a refresh token cannot be stored
	claims, err := s.codec.Parse(refreshToken)
	if err != nil || claims.TokenType != token.TypeRefresh {
		return model.Tokens{}, errs.ErrNotFound
	}

	rt, err := s.sessions.GetByToken(ctx, refreshToken)
	if err != nil {
		return model.Tokens{}, err
	}
	now := s.now()
	if !rt.Active(now) {
		return model.Tokens{}, errs.ErrExpired
	}

	u, err := s.users.GetByID(ctx, rt.UserID)
	if err != nil {
		return model.Tokens{}, err
	}
	access, exp, err := s.codec.IssueAccess(u.Email, u.Roles(), now)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: access, RefreshToken: rt.Token, ExpiresAt: exp}, nil
}

// Logout revokes all refresh tokens of userID.
func (s *AuthServiceImpl) Logout(ctx context.Context, userID uuid.UUID) error {
	_, err := s.sessions.RevokeAllForUser(ctx, userID)
	return err
}

// LogoutPrincipal logs out the user behind an authenticated principal. A deleted
// user has no sessions left, so that logout succeeds as a no-op.
func (s *AuthServiceImpl) LogoutPrincipal(ctx context.Context, p model.Principal) error {
	if p.Anonymous() {
		return errs.ErrUnauthorized
	}
	u, err := s.users.GetByEmail(ctx, p.Subject)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.Logout(ctx, u.ID)
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
