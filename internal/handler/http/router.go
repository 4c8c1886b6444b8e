package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/domain"
	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/service"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/health"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/middleware"
)

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(
	authService *service.AuthService,
	oauthService *service.OAuthService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing("auth-service"))
	r.Use(middleware.PrometheusMetrics("auth"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	authHandler := NewAuthHandler(authService, logger)
	oauthHandler := NewOAuthHandler(oauthService, authService, logger)
	sessionHandler := NewSessionHandler(authService, logger)
	adminHandler := NewAdminHandler(authService, logger)

	// Auth endpoints (public)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)
	})

	// Provider callback (public; an optional bearer token links instead)
	r.Route("/api/v1/oauth/{provider}/callback", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", oauthHandler.Callback)
	})

	// Authenticated endpoints
	r.Group(func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(authService.VerifyToken))

		r.Post("/api/v1/auth/change-password", authHandler.ChangePassword)
		r.Get("/api/v1/auth/sessions", sessionHandler.List)
		r.Delete("/api/v1/auth/sessions", sessionHandler.RevokeAll)

		r.Get("/api/v1/oauth/links", oauthHandler.ListLinks)
		r.Delete("/api/v1/oauth/{provider}", oauthHandler.Unlink)
	})

	// Admin endpoints
	r.Group(func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(authService.VerifyToken))
		r.Use(middleware.RequireRole(domain.RoleAdmin))

		r.Post("/api/v1/admin/accounts/{id}/suspend", adminHandler.Suspend)
		r.Delete("/api/v1/admin/accounts/{id}/suspend", adminHandler.Unsuspend)
	})

	return r
}
