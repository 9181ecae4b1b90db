package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/and161185/userservice/internal/model"
	"github.com/and161185/userservice/internal/token"
)

// LastSeen records activity without blocking.
type LastSeen interface {
	Touch(email string) bool
}

// Gate turns a bearer access token into a principal. Any failure, including a
// bad signature, an expired token or a refresh token, yields an anonymous request.
type Gate struct {
	codec *token.Codec
	seen  LastSeen
	now   func() time.Time
}

// NewGate constructs a Gate; seen may be nil.
func NewGate(codec *token.Codec, seen LastSeen) *Gate {
	return &Gate{codec: codec, seen: seen, now: time.Now}
}

// Authenticate resolves an Authorization header value.
func (g *Gate) Authenticate(header string) (model.Principal, bool) {
	raw, ok := bearerToken(header)
	if !ok {
		return model.Principal{}, false
	}
	claims, err := g.codec.Parse(raw)
	if err != nil {
		return model.Principal{}, false
	}
	if claims.TokenType == token.TypeRefresh || token.IsExpired(claims, g.now()) {
		return model.Principal{}, false
	}
	return model.Principal{Subject: claims.Subject, Roles: claims.Roles}, true
}

// Middleware attaches the principal to the request context before any handler runs.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := g.Authenticate(r.Header.Get("Authorization"))
		if ok {
			if g.seen != nil {
				g.seen.Touch(p.Subject)
			}
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	return raw, raw != ""
}
