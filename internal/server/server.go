package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Treamyracle/INFOMEDIA/internal/agent"
	"github.com/Treamyracle/INFOMEDIA/internal/audit"
	"github.com/Treamyracle/INFOMEDIA/internal/otel"
)

const (
	defaultTimeout = 60 * time.Second
	// chatTimeout bounds one conversational turn: NER plus several model rounds.
	chatTimeout = 5 * time.Minute
)

// Server holds all dependencies for the HTTP API.
type Server struct {
	router      *chi.Mux
	runner      *agent.Runner
	auditStore  *audit.Store
	limiter     *RateLimiter
	apiKey      string
	corsOrigins []string
	startTime   time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithAuditStore enables the read-only audit endpoints.
func WithAuditStore(st *audit.Store) Option {
	return func(s *Server) { s.auditStore = st }
}

// WithRateLimiter sets the per-client rate limiter. nil disables limiting.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// WithAPIKey requires X-Domi-Key or Authorization: Bearer on the API routes.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithCORSOrigins sets allowed CORS origins (e.g. ["*"] for the local web UI).
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// NewServer builds a Server around runner.
func NewServer(runner *agent.Runner, opts ...Option) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		runner:      runner,
		corsOrigins: []string{"*"},
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler (chi router with all middleware and routes).
// /chat is registered without the default request timeout so the longer turn
// deadline applies.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.MiddlewareWithStatus())
	r.Use(CORSMiddleware(s.corsOrigins))

	// Unauthenticated
	r.Get("/health", s.handleHealth)
	r.Get("/v1/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.apiKey))
		r.Use(SessionMiddleware)
		r.Use(RateLimitMiddleware(s.limiter))

		r.Post("/chat", s.handleChat)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(defaultTimeout))
			r.Post("/v1/redact", s.handleRedact)
			r.Delete("/v1/sessions/{id}", s.handleSessionDelete)

			if s.auditStore != nil {
				r.Get("/v1/audit", s.handleAuditList)
				r.Get("/v1/audit/{id}", s.handleAuditGet)
			}
		})
	})

	return r
}
