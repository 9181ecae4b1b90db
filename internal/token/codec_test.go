package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/userservice/internal/errs"
	"github.com/and161185/userservice/internal/model"
)

var testKey = []byte(strings.Repeat("k", MinKeyLen))

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testKey, 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func signMap(t *testing.T, key []byte, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func TestNewCodec_WeakKeyIsFatal(t *testing.T) {
	t.Parallel()

	if _, err := NewCodec([]byte("short"), time.Minute, time.Hour); !errors.Is(err, errs.ErrWeakKey) {
		t.Fatalf("want ErrWeakKey, got %v", err)
	}
	if _, err := NewCodec(testKey, 0, time.Hour); err == nil {
		t.Fatalf("want error on zero access TTL")
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	now := time.Now()
	tok, exp, err := c.IssueAccess("a@x.com", []string{"ADMIN", "MANAGER"}, now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if !exp.After(now) || exp.After(now.Add(c.AccessTTL())) {
		t.Fatalf("bad expiry %v for now %v", exp, now)
	}

	claims, err := c.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "a@x.com" {
		t.Fatalf("subject mismatch: %q", claims.Subject)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "ADMIN" || claims.Roles[1] != "MANAGER" {
		t.Fatalf("roles mismatch: %v", claims.Roles)
	}
	if claims.TokenType != TypeAccess || !claims.ExpiresAt.Equal(exp) {
		t.Fatalf("bad claims: %+v", claims)
	}

	if IsExpired(claims, exp.Add(-time.Second)) {
		t.Fatalf("must be valid before expiry")
	}
	if !IsExpired(claims, exp) || !IsExpired(claims, exp.Add(time.Hour)) {
		t.Fatalf("must be expired at and after expiry")
	}
}

func TestParse_ExpiredTokenStillVerifies(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	past := time.Now().Add(-time.Hour)
	tok, _, err := c.IssueAccess("a@x.com", []string{"ADMIN"}, past)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := c.Parse(tok)
	if err != nil {
		t.Fatalf("expired tokens parse; expiry is checked by the caller: %v", err)
	}
	if !IsExpired(claims, time.Now()) {
		t.Fatalf("want expired")
	}
}

func TestParse_AnySignatureByteFlipIsInvalidSignature(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	tok, _, err := c.IssueAccess("a@x.com", []string{"ADMIN"}, time.Now())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	dot := strings.LastIndexByte(tok, '.')
	for i := dot + 1; i < len(tok); i++ {
		b := []byte(tok)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		if _, err := c.Parse(string(b)); !errors.Is(err, errs.ErrInvalidSignature) {
			t.Fatalf("flip at %d: want ErrInvalidSignature, got %v", i, err)
		}
	}
}

func TestParse_AnySignatureBitFlipIsInvalidSignature(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	tok, _, err := c.IssueAccess("a@x.com", []string{"ADMIN"}, time.Now())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	dot := strings.LastIndexByte(tok, '.')
	for i := dot + 1; i < len(tok); i++ {
		for bit := 0; bit < 8; bit++ {
			b := []byte(tok)
			b[i] ^= 1 << bit
			if _, err := c.Parse(string(b)); !errors.Is(err, errs.ErrInvalidSignature) {
				t.Fatalf("pos %d bit %d (%q): want ErrInvalidSignature, got %v", i, bit, b[i], err)
			}
		}
	}

	b := []byte(tok)
	b[len(b)-2] = '.'
	if _, err := c.Parse(string(b)); !errors.Is(err, errs.ErrInvalidSignature) {
		t.Fatalf("dot in signature: want ErrInvalidSignature, got %v", err)
	}
}

func TestParse_ForeignKeyAndAlgorithm(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	claims := jwt.MapClaims{"sub": "a@x.com", "exp": time.Now().Add(time.Hour).Unix()}

	foreign := signMap(t, []byte(strings.Repeat("z", MinKeyLen)), jwt.SigningMethodHS512, claims)
	if _, err := c.Parse(foreign); !errors.Is(err, errs.ErrInvalidSignature) {
		t.Fatalf("foreign key: want ErrInvalidSignature, got %v", err)
	}

	hs256 := signMap(t, testKey, jwt.SigningMethodHS256, claims)
	if _, err := c.Parse(hs256); !errors.Is(err, errs.ErrInvalidSignature) {
		t.Fatalf("HS256: want ErrInvalidSignature, got %v", err)
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	for _, raw := range []string{"", "garbage", "a.b", "###.###.###", "e30.e30"} {
		if _, err := c.Parse(raw); !errors.Is(err, errs.ErrMalformed) {
			t.Fatalf("%q: want ErrMalformed, got %v", raw, err)
		}
	}

	noSub := signMap(t, testKey, jwt.SigningMethodHS512, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	if _, err := c.Parse(noSub); !errors.Is(err, errs.ErrMalformed) {
		t.Fatalf("missing sub: want ErrMalformed, got %v", err)
	}
	noExp := signMap(t, testKey, jwt.SigningMethodHS512, jwt.MapClaims{"sub": "a@x.com"})
	if _, err := c.Parse(noExp); !errors.Is(err, errs.ErrMalformed) {
		t.Fatalf("missing exp: want ErrMalformed, got %v", err)
	}
}

func TestParse_DefaultRoleFallback(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	exp := time.Now().Add(time.Hour).Unix()
	cases := map[string]jwt.MapClaims{
		"missing":    {"sub": "a@x.com", "exp": exp},
		"empty":      {"sub": "a@x.com", "exp": exp, "roles": []string{}},
		"not a list": {"sub": "a@x.com", "exp": exp, "roles": "ADMIN"},
		"no strings": {"sub": "a@x.com", "exp": exp, "roles": []any{1, true}},
	}
	for name, mc := range cases {
		claims, err := c.Parse(signMap(t, testKey, jwt.SigningMethodHS512, mc))
		if err != nil {
			t.Fatalf("%s: Parse: %v", name, err)
		}
		if len(claims.Roles) != 1 || claims.Roles[0] != model.DefaultRole {
			t.Fatalf("%s: want [%s], got %v", name, model.DefaultRole, claims.Roles)
		}
	}

	tok, _, err := c.IssueAccess("a@x.com", nil, time.Now())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := c.Parse(tok)
	if err != nil || len(claims.Roles) != 1 || claims.Roles[0] != model.DefaultRole {
		t.Fatalf("issued without roles: claims=%+v err=%v", claims, err)
	}
}

func TestRefreshToken_NoRolesAndUnique(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	now := time.Now()
	a, expA, err := c.IssueRefresh("a@x.com", now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	b, _, err := c.IssueRefresh("a@x.com", now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if a == b {
		t.Fatalf("refresh tokens for the same subject and instant must differ")
	}
	if !expA.After(now.Add(c.AccessTTL())) {
		t.Fatalf("refresh TTL must exceed access TTL")
	}

	claims, err := c.Parse(a)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.TokenType != TypeRefresh || claims.Roles != nil || claims.ID == "" {
		t.Fatalf("bad refresh claims: %+v", claims)
	}
}
