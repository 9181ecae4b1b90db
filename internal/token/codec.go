// Package token issues and verifies the compact HS512 JWTs used as access and refresh tokens.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/userservice/internal/errs"
	"github.com/and161185/userservice/internal/model"
)

// MinKeyLen is the minimum HS512 key length in bytes (the hash output size).
const MinKeyLen = 64

// Token kinds carried in the token_type claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var signingMethod = jwt.SigningMethodHS512

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Roles     []string // access tokens only; DefaultRole when absent or unusable
	TokenType string   // "" for tokens minted without a type, treated as access
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// wireClaims is the JSON shape of the claims segment. Roles stays untyped so that
// a foreign or broken roles value degrades to the default role instead of a parse error.
type wireClaims struct {
	Roles     any    `json:"roles,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and parses tokens with a single symmetric key. Safe for concurrent use.
type Codec struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
}

// NewCodec validates the key and TTLs. A short key is a fatal configuration error.
func NewCodec(key []byte, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if len(key) < MinKeyLen {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d for %s", errs.ErrWeakKey, len(key), MinKeyLen, signingMethod.Alg())
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token: TTLs must be positive")
	}
	return &Codec{
		key:        append([]byte(nil), key...),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod.Alg()}),
			jwt.WithoutClaimsValidation(), // expiry is an application decision, see IsExpired
			jwt.WithStrictDecoding(),
		),
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// IssueAccess mints an access token for subject with roles, valid from now for the access TTL.
func (c *Codec) IssueAccess(subject string, roles []string, now time.Time) (string, time.Time, error) {
	if roles == nil {
		roles = []string{}
	}
	claims := wireClaims{
		Roles:     roles,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}
	return c.sign(claims)
}

// IssueRefresh mints a refresh token for subject. A random jti makes the value unguessable
// from the other claims.
func (c *Codec) IssueRefresh(subject string, now time.Time) (string, time.Time, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, err
	}
	claims := wireClaims{
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}
	return c.sign(claims)
}

func (c *Codec) sign(claims wireClaims) (string, time.Time, error) {
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Parse verifies the signature and only then decodes the claims.
// Failures are errs.ErrInvalidSignature or errs.ErrMalformed. Expiry is not checked here.
func (c *Codec) Parse(raw string) (Claims, error) {
	var wc wireClaims
	_, err := c.parser.ParseWithClaims(raw, &wc, func(*jwt.Token) (any, error) { return c.key, nil })
	if err != nil {
		return Claims{}, c.classify(raw, err)
	}
	if wc.Subject == "" || wc.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing sub or exp", errs.ErrMalformed)
	}

	out := Claims{
		Subject:   wc.Subject,
		TokenType: wc.TokenType,
		ID:        wc.ID,
		ExpiresAt: wc.ExpiresAt.Time,
	}
	if wc.IssuedAt != nil {
		out.IssuedAt = wc.IssuedAt.Time
	}
	if wc.TokenType != TypeRefresh {
		out.Roles = decodeRoles(wc.Roles)
	}
	return out, nil
}

// classify maps jwt errors onto the token error taxonomy. A token whose header and claims
// decode but whose signature segment does not is a signature failure, not a malformed token.
func (c *Codec) classify(raw string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", errs.ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed) && signatureSegmentOnly(raw):
		return fmt.Errorf("%w: %v", errs.ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", errs.ErrMalformed, err)
	}
}

// signatureSegmentOnly reports whether header and claims of raw decode cleanly, leaving
// the signature segment as the only possible cause of a malformed-token error. A '.'
// inside a damaged signature splits it, so extra trailing segments count as signature.
func signatureSegmentOnly(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) < 3 {
		return false
	}
	for _, seg := range parts[:2] {
		b, err := base64.RawURLEncoding.DecodeString(seg)
		if err != nil || !json.Valid(b) {
			return false
		}
	}
	return true
}

// IsExpired reports whether claims are past expiry at now (expiry <= now).
func IsExpired(claims Claims, now time.Time) bool {
	return !now.Before(claims.ExpiresAt)
}

func decodeRoles(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{model.DefaultRole}
	}
	roles := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			roles = append(roles, s)
		}
	}
	if len(roles) == 0 {
		return []string{model.DefaultRole}
	}
	return roles
}
