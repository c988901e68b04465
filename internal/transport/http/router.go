package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-api-verify/internal/application/auth"
	"github.com/go-api-verify/internal/config"
	"github.com/go-api-verify/internal/transport/http/handler"
	appmiddleware "github.com/go-api-verify/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps holds the application services the router exposes.
type Deps struct {
	Auth   auth.Service
	Logger *slog.Logger
}

// NewRouter builds and returns the application router. ctx bounds the
// rate limiter's background sweep.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(appmiddleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	limiter := appmiddleware.PerMinute(ctx, cfg.RateLimitPerMinute)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(deps.Auth, log)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(limiter.Limit)

			r.Post("/auth/register", authH.Register)
			r.Get("/auth/verify-email", authH.VerifyEmail)
			r.Post("/auth/send-sms-code", authH.SendSMSCode)
			r.Post("/auth/verify-phone", authH.VerifyPhone)
		})
	})

	return r
}
