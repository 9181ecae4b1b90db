// Package model defines domain entities used by services and repositories.
package model

import (
	"slices"
	"time"

	"github.com/gofrs/uuid/v5"
)

// DefaultRole is granted when a verified access token carries no usable roles claim.
const DefaultRole = "USER"

// Roles stored on user records.
const (
	RoleAdmin    = "ADMIN"
	RoleManager  = "MANAGER"
	RoleEmployee = "EMPLOYEE"
)

// User statuses.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// Principal is the authenticated identity of a request. Never persisted.
type Principal struct {
	Subject string   // identity (email)
	Roles   []string // attributes for an external decision point
}

// HasRole reports whether the principal carries role.
func (p Principal) HasRole(role string) bool { return slices.Contains(p.Roles, role) }

// Anonymous reports whether p is the zero (unauthenticated) principal.
func (p Principal) Anonymous() bool { return p.Subject == "" }

// Tokens collects issued access/refresh tokens.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry
}

// RefreshToken is a persisted refresh token record. Token is the opaque value handed to clients.
type RefreshToken struct {
	ID        string // ULID row id
	Token     string
	UserID    uuid.UUID
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Active reports whether the token can still mint access tokens at now.
func (rt RefreshToken) Active(now time.Time) bool {
	return !rt.Revoked && !rt.ExpiresAt.Before(now)
}

// User represents an account stored on the server.
type User struct {
	ID               uuid.UUID // PK
	Email            string    // unique, token subject
	PwdHash          string    // PHC-encoded argon2id
	FirstName        string
	LastName         string
	PhoneNumber      string
	Role             string
	BusinessUnitID   string // "" when unassigned
	BusinessUnitName string // locally cached name, "" until resolved
	Status           string
	CreatedAt        time.Time
	LastSeenAt       time.Time
}

// Roles returns the role set minted into access tokens.
func (u User) Roles() []string {
	if u.Role == "" {
		return nil
	}
	return []string{u.Role}
}

// Principal snapshots the user as an authenticated identity.
func (u User) Principal() Principal {
	return Principal{Subject: u.Email, Roles: u.Roles()}
}

// EventType is the lifecycle kind of a business unit event.
type EventType string

// Business unit lifecycle kinds.
const (
	EventCreated EventType = "CREATED"
	EventUpdated EventType = "UPDATED"
	EventDeleted EventType = "DELETED"
)

// BusinessUnitEvent is published by the organization service; consumed only.
type BusinessUnitEvent struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Type EventType `json:"type"`
}

// NameLookupRequest asks the owning service to resolve a business unit name.
type NameLookupRequest struct {
	UserID         string `json:"userId"`
	BusinessUnitID string `json:"businessUnitId"`
}

// NameLookupResponse carries the authoritative name; matched by content, not by request id.
type NameLookupResponse struct {
	UserID           string `json:"userId"`
	BusinessUnitID   string `json:"businessUnitId"`
	BusinessUnitName string `json:"businessUnitName"`
}
