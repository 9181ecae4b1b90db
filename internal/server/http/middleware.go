package httpserver

import (
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/and161185/userservice/internal/errs"
	"github.com/and161185/userservice/internal/metrics"
)

// Logging logs one line per request. Bodies and headers are never logged.
func Logging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http",
				zap.String("method", r.Method),
				zap.String("route", routePattern(r)),
				zap.Int("status", ww.Status()),
				zap.Duration("dur", time.Since(start)),
				zap.String("peer", r.RemoteAddr),
			)
		})
	}
}

// Recover answers 500 when a handler panics.
func Recover(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic",
						zap.Any("reason", rec),
						zap.ByteString("stack", debug.Stack()),
						zap.String("path", r.URL.Path),
					)
					writeError(w, r, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Instrument records request metrics labelled by route pattern.
func Instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.RequestStarted()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				m.RequestDone(r.Method, routePattern(r), ww.Status(), time.Since(start))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromCtx(r.Context()); !ok {
			fail(w, r, nil, errs.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// routePattern is the matched chi pattern, or "unmatched" to keep label cardinality bounded.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

const throttleKeys = 10000

// Throttle is a per-client token bucket. Buckets live in a 2Q cache: a flood of
// one-shot client addresses churns the recent queue and leaves the buckets of
// repeat clients in place.
type Throttle struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters *lru.TwoQueueCache[string, *rate.Limiter]
}

// NewThrottle allows rps requests per second per client with the given burst.
func NewThrottle(rps float64, burst int) *Throttle {
	return newThrottle(rps, burst, throttleKeys)
}

func newThrottle(rps float64, burst, maxKeys int) *Throttle {
	limiters, _ := lru.New2Q[string, *rate.Limiter](maxKeys)
	return &Throttle{
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: limiters,
	}
}

func (t *Throttle) allow(key string) bool {
	t.mu.Lock()
	l, ok := t.limiters.Get(key)
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters.Add(key, l)
	}
	t.mu.Unlock()
	return l.Allow()
}

// Middleware answers 429 once the client's bucket is empty.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.allow(clientHost(r)) {
			w.Header().Set("Retry-After", "1")
			fail(w, r, nil, errs.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientHost(r *http.Request) string {
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return h
	}
	return r.RemoteAddr
}
