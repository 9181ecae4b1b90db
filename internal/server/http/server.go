// Package httpserver exposes the identity HTTP API.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/userservice/internal/metrics"
	"github.com/and161185/userservice/internal/model"
	"github.com/and161185/userservice/internal/service"
)

// UserAPI is the user-record surface the handlers need.
type UserAPI interface {
	Me(ctx context.Context, p model.Principal) (*model.User, error)
	AssignBusinessUnit(ctx context.Context, p model.Principal, userID uuid.UUID, unitID string) error
	BusinessUnitName(ctx context.Context, unitID string) (string, error)
}

var _ UserAPI = (*service.UserService)(nil)

// Server wires services into HTTP handlers.
type Server struct {
	auth        service.AuthService
	users       UserAPI
	gate        *Gate
	log         *zap.Logger
	metrics     *metrics.Metrics
	metricsPage http.Handler
	throttle    *Throttle
	now         func() time.Time
}

// Option customizes Server.
type Option func(*Server)

// WithMetrics records request metrics in m and serves page at /metrics.
func WithMetrics(m *metrics.Metrics, page http.Handler) Option {
	return func(s *Server) { s.metrics, s.metricsPage = m, page }
}

// WithThrottle limits request rate on the /v1/auth endpoints.
func WithThrottle(t *Throttle) Option {
	return func(s *Server) { s.throttle = t }
}

// New constructs a Server with injected services.
func New(auth service.AuthService, users UserAPI, gate *Gate, log *zap.Logger, opts ...Option) *Server {
	s := &Server{auth: auth, users: users, gate: gate, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes builds the router. The gate runs before every handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(s.log), Instrument(s.metrics), Logging(s.log), s.gate.Middleware)

	r.Get("/healthz", s.healthz)
	if s.metricsPage != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsPage)
	}

	r.Route("/v1/auth", func(r chi.Router) {
		if s.throttle != nil {
			r.Use(s.throttle.Middleware)
		}
		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.Post("/refresh", s.refresh)
		r.With(RequireAuth).Post("/logout", s.logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth)
		r.Get("/v1/users/me", s.me)
		r.Put("/v1/users/{id}/business-unit", s.assignBusinessUnit)
		r.Get("/v1/business-units/{id}/name", s.businessUnitName)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "no such route")
	})
	return r
}
