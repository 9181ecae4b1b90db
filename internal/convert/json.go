// Package convert maps domain values to and from the JSON wire shapes of the HTTP API.
package convert

import (
	"time"

	"github.com/and161185/userservice/internal/model"
)

// TokenTypeBearer is the only token type handed out.
const TokenTypeBearer = "Bearer"

// --- Auth ---

// RegisterRequest is the sign-up body.
type RegisterRequest struct {
	Email                 string `json:"email"`
	Password              string `json:"password"`
	FirstName             string `json:"firstName"`
	LastName              string `json:"lastName"`
	PhoneNumber           string `json:"phoneNumber"`
	PrivacyPolicyAccepted bool   `json:"privacyPolicyAccepted"`
}

// LoginRequest is the password login body.
type LoginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

// Principal is the JSON form of an authenticated identity.
type Principal struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles"`
}

// LoginResponse carries a fresh token pair. ExpiresIn is in milliseconds.
type LoginResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	ExpiresIn    int64     `json:"expiresIn"`
	Principal    Principal `json:"principal"`
}

// RefreshRequest is the refresh body.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse returns a new access token and the unchanged refresh token.
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// ToPrincipal converts a domain principal.
func ToPrincipal(p model.Principal) Principal {
	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}
	return Principal{Subject: p.Subject, Roles: roles}
}

// ToLoginResponse builds the login body; expiry is relative to now.
func ToLoginResponse(t model.Tokens, p model.Principal, now time.Time) LoginResponse {
	return LoginResponse{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    expiresIn(t.ExpiresAt, now),
		Principal:    ToPrincipal(p),
	}
}

// ToRefreshResponse builds the refresh body.
func ToRefreshResponse(t model.Tokens, now time.Time) RefreshResponse {
	return RefreshResponse{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    expiresIn(t.ExpiresAt, now),
	}
}

func expiresIn(exp, now time.Time) int64 {
	ms := exp.Sub(now).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// --- Users ---

// User is the public form of a user record; the password hash never leaves the service.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	PhoneNumber      string     `json:"phoneNumber,omitempty"`
	Role             string     `json:"role"`
	BusinessUnitID   string     `json:"businessUnitId,omitempty"`
	BusinessUnitName string     `json:"businessUnitName,omitempty"`
	Status           string     `json:"status"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
	LastSeenAt       *time.Time `json:"lastSeenAt,omitempty"`
}

// ToUser converts a domain user.
func ToUser(u model.User) User {
	return User{
		ID:               u.ID.String(),
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		PhoneNumber:      u.PhoneNumber,
		Role:             u.Role,
		BusinessUnitID:   u.BusinessUnitID,
		BusinessUnitName: u.BusinessUnitName,
		Status:           u.Status,
		CreatedAt:        ts(u.CreatedAt),
		LastSeenAt:       ts(u.LastSeenAt),
	}
}

func ts(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// AssignBusinessUnitRequest moves a user to another business unit.
type AssignBusinessUnitRequest struct {
	BusinessUnitID string `json:"businessUnitId"`
}

// BusinessUnitName is the cached name of a business unit.
type BusinessUnitName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// --- Errors ---

// Error is the body of every non-2xx response.
type Error struct {
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}
