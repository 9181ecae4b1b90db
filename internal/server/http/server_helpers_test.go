package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/userservice/internal/errs"
	"github.com/and161185/userservice/internal/model"
	"github.com/and161185/userservice/internal/service"
	"github.com/and161185/userservice/internal/token"
)

var testKey = []byte(strings.Repeat("h", token.MinKeyLen))

func newCodec(t *testing.T) *token.Codec {
	t.Helper()
	c, err := token.NewCodec(testKey, 15*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

type fakeAuth struct {
	tokens    model.Tokens
	principal model.Principal
	user      *model.User
	err       error

	mu         sync.Mutex
	lastIP     string
	loggedOut  []model.Principal
	registered []service.RegisterInput
}

var _ service.AuthService = (*fakeAuth)(nil)

func (f *fakeAuth) Register(_ context.Context, in service.RegisterInput) (*model.User, error) {
	f.mu.Lock()
	f.registered = append(f.registered, in)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func (f *fakeAuth) Login(_ context.Context, _, _, ip string) (model.Tokens, model.Principal, error) {
	f.mu.Lock()
	f.lastIP = ip
	f.mu.Unlock()
	return f.tokens, f.principal, f.err
}

func (f *fakeAuth) Refresh(context.Context, string) (model.Tokens, error) {
	return f.tokens, f.err
}

func (f *fakeAuth) Logout(context.Context, uuid.UUID) error { return f.err }

func (f *fakeAuth) LogoutPrincipal(_ context.Context, p model.Principal) error {
	f.mu.Lock()
	f.loggedOut = append(f.loggedOut, p)
	f.mu.Unlock()
	return f.err
}

type fakeUserAPI struct {
	user     *model.User
	name     string
	err      error
	assigned []string
	seen     model.Principal
}

var _ UserAPI = (*fakeUserAPI)(nil)

func (f *fakeUserAPI) Me(_ context.Context, p model.Principal) (*model.User, error) {
	f.seen = p
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func (f *fakeUserAPI) AssignBusinessUnit(_ context.Context, p model.Principal, id uuid.UUID, unitID string) error {
	f.seen = p
	if f.err != nil {
		return f.err
	}
	f.assigned = append(f.assigned, id.String()+"="+unitID)
	return nil
}

func (f *fakeUserAPI) BusinessUnitName(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.name == "" {
		return "", errs.ErrNotFound
	}
	return f.name, nil
}

type fakeSeen struct {
	mu     sync.Mutex
	emails []string
}

func (f *fakeSeen) Touch(email string) bool {
	f.mu.Lock()
	f.emails = append(f.emails, email)
	f.mu.Unlock()
	return true
}

type fixture struct {
	codec *token.Codec
	auth  *fakeAuth
	users *fakeUserAPI
	seen  *fakeSeen
	h     http.Handler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		codec: newCodec(t),
		auth:  &fakeAuth{},
		users: &fakeUserAPI{},
		seen:  &fakeSeen{},
	}
	gate := NewGate(f.codec, f.seen)
	f.h = New(f.auth, f.users, gate, zaptest.NewLogger(t), opts...).Routes()
	return f
}

func (f *fixture) access(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	tok, _, err := f.codec.IssueAccess(subject, roles, time.Now())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.1.2.3:4567"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}
