package httpserver

import (
	"context"

	"github.com/and161185/userservice/internal/model"
)

type ctxKey string

const principalKey ctxKey = "us.principal"

// WithPrincipal stores the authenticated principal in context.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromCtx fetches the principal; ok is false for anonymous requests.
func PrincipalFromCtx(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(model.Principal)
	if !ok || p.Anonymous() {
		return model.Principal{}, false
	}
	return p, true
}
