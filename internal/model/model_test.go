package model

import (
	"testing"
	"time"
)

func TestRefreshToken_Active(t *testing.T) {
	t.Parallel()

	now := time.Now()
	rt := RefreshToken{ExpiresAt: now.Add(time.Minute)}
	if !rt.Active(now) {
		t.Fatalf("fresh token must be active")
	}
	rt.Revoked = true
	if rt.Active(now) {
		t.Fatalf("revoked token must not be active")
	}
	rt = RefreshToken{ExpiresAt: now.Add(-time.Second)}
	if rt.Active(now) {
		t.Fatalf("expired token must not be active")
	}
}

func TestUser_Principal(t *testing.T) {
	t.Parallel()

	u := User{Email: "a@x.com", Role: RoleManager}
	p := u.Principal()
	if p.Subject != "a@x.com" || !p.HasRole(RoleManager) || p.HasRole(RoleAdmin) {
		t.Fatalf("bad principal: %+v", p)
	}
	if p.Anonymous() || !(Principal{}).Anonymous() {
		t.Fatalf("anonymous detection broken")
	}
	if (User{}).Roles() != nil {
		t.Fatalf("no role must yield nil roles")
	}
}
