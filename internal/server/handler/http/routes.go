package http

import (
	"net/http"
	"time"

	"github.com/atinyakov/envmanager/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries everything NewRouter wires together.
type RouterConfig struct {
	Auth        KeyChecker
	AuthHandler *AuthHandler
	EnvHandler  *EnvHandler
	// Dashboard is mounted at the root when non-nil.
	Dashboard http.Handler
	Logger    *zap.Logger
	Metrics   *middleware.Metrics
	// Limiter throttles login attempts per client IP; nil disables it.
	Limiter     middleware.RateLimiter
	LoginLimit  int
	LoginWindow time.Duration
}

// NewRouter constructs the HTTP handler serving the API, the metrics endpoint
// and the dashboard.
//
// Routes:
//
//	GET    /api                                     → health
//	POST   /api/login, /api/logout                  → cookie session
//	GET    /api/projects                            → project names
//	GET    /api/projects/{project}/envs             → environment names
//	GET    /api/projects/{project}/env/{env}        → full record
//	POST   /api/projects/{project}/env/{env}        → replace variables (PUT accepted too)
//	GET    /api/projects/{project}/env/{env}/status → lastModified only
//	DELETE /api/projects/{project}                  → delete project
//	GET    /metrics                                 → Prometheus exposition
//
// Middleware chain (applied in order): request id, peer address, real ip,
// panic recovery, request logging, metrics. Login throttling keys on the peer
// address, so forwarding headers cannot reset it. API routes additionally
// require a JSON content type on bodies and, except health and login/logout,
// a valid API key.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.PeerAddr)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(cfg.Logger))
	r.Use(cfg.Metrics.Middleware)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/json"))

		// Public endpoints
		r.Get("/", cfg.EnvHandler.Health)
		r.With(middleware.RateLimit(cfg.Limiter, "login", cfg.LoginLimit, cfg.LoginWindow, cfg.Metrics)).
			Post("/login", cfg.AuthHandler.Login)
		r.Post("/logout", cfg.AuthHandler.Logout)

		// Protected group: requires the admin secret
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(cfg.Auth.Check))

			r.Get("/projects", cfg.EnvHandler.ListProjects)
			r.Delete("/projects/{project}", cfg.EnvHandler.DeleteProject)
			r.Get("/projects/{project}/envs", cfg.EnvHandler.ListEnvironments)
			r.Get("/projects/{project}/env/{env}", cfg.EnvHandler.GetEnv)
			r.Post("/projects/{project}/env/{env}", cfg.EnvHandler.SaveEnv)
			r.Put("/projects/{project}/env/{env}", cfg.EnvHandler.SaveEnv)
			r.Get("/projects/{project}/env/{env}/status", cfg.EnvHandler.Status)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "Not Found")
		})
	})

	if cfg.Dashboard != nil {
		r.Mount("/", cfg.Dashboard)
	}

	return r
}
