package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nikhilbhutani/tableside/internal/api/handlers"
	"github.com/nikhilbhutani/tableside/internal/api/middleware"
	"github.com/nikhilbhutani/tableside/internal/audit"
	"github.com/nikhilbhutani/tableside/internal/auth"
	"github.com/nikhilbhutani/tableside/internal/config"
	"github.com/nikhilbhutani/tableside/internal/models"
	"github.com/nikhilbhutani/tableside/internal/token"
)

// Deps is everything the HTTP surface is built from. DB and Audit are nil
// when accounts live in memory.
type Deps struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Auth   *auth.Service
	Tokens *token.Issuer
	Audit  *audit.Service
}

type Router struct {
	mux  *chi.Mux
	deps Deps
	jwt  *auth.JWTMiddleware
	rl   *middleware.RateLimiter
}

func NewRouter(deps Deps) *Router {
	return &Router{
		mux:  chi.NewRouter(),
		deps: deps,
		jwt:  auth.NewJWTMiddleware(deps.Tokens),
		rl:   middleware.NewRateLimiter(deps.Config.Server.RateLimitRPS, deps.Config.Server.RateLimitBurst),
	}
}

// Close stops background work owned by the router.
func (rt *Router) Close() {
	rt.rl.Stop()
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	logger := rt.deps.Logger

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.deps.Config.Server.AllowedOrigins))
	r.Use(rt.rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.deps.DB, rt.deps.Redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	authH := handlers.NewAuthHandler(rt.deps.Auth, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authH.Register)
			r.Post("/register/confirm", authH.ConfirmRegistration)
			r.Post("/login", authH.Login)
			r.Post("/refresh", authH.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(rt.jwt.Authenticate)
				r.Post("/logout", authH.Logout)
				r.Post("/logout-all", authH.LogoutAll)
				r.Get("/sessions", authH.Sessions)
				r.Get("/me", authH.Me)
			})
		})

		if rt.deps.Audit != nil {
			adminH := handlers.NewAdminHandler(rt.deps.Audit, logger)
			r.Route("/admin", func(r chi.Router) {
				r.Use(rt.jwt.Authenticate)
				r.Use(auth.RequireRole(models.RoleOwner))
				r.Get("/audit", adminH.AuditLogs)
			})
		}
	})

	return r
}
