package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/goReset/internal/config"
	"github.com/MrEthical07/goReset/internal/transport/http/handler"
	appmiddleware "github.com/MrEthical07/goReset/internal/transport/http/middleware"
)

// Service is everything the router needs from the engine. *goReset.Engine
// satisfies it.
type Service interface {
	handler.ResetService
	handler.TokenService
	handler.Pinger
}

// Deps holds the router's collaborators.
type Deps struct {
	Service Service
	Metrics http.Handler
	Logger  *zap.Logger
}

// Router is the HTTP entry point. Stop releases the per-IP limiter.
type Router struct {
	http.Handler
	limiter *appmiddleware.RateLimiter
}

// Stop ends background work started by NewRouter.
func (r *Router) Stop() {
	r.limiter.Stop()
}

// NewRouter builds the application router.
func NewRouter(cfg *config.Config, deps Deps) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(appmiddleware.ClientIP)

	limiter := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimit.HTTPRate), cfg.RateLimit.HTTPBurst)

	resetH := handler.NewPasswordResetHandler(deps.Service, logger)
	tokenH := handler.NewTokenHandler(deps.Service)
	healthH := handler.NewHealthHandler(deps.Service)

	r.Get("/healthz", healthH.Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter.Limit)
			r.Post("/password-reset/code", resetH.RequestCode)
			r.Post("/password-reset/verify", resetH.Verify)
		})

		r.Get("/reset-tokens/{jti}", tokenH.Status)
		r.Post("/reset-tokens/{jti}/use", tokenH.Use)
	})

	return &Router{Handler: r, limiter: limiter}
}
