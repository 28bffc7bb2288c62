// Package http provides the HTTP delivery layer of the service: link creation,
// redirects, dashboards and per-link analytics.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter initializes and returns a new Chi router configured with middleware and routes.
// Cross-origin requests, credentials included, are allowed only from allowedOrigins.
// With no allowed origins the router sends no CORS headers at all.
func NewRouter(
	logger *httplog.Logger,
	auth *Authenticator,
	allowedOrigins []string,
	linkUseCase linkUseCase,
	reportUseCase reportUseCase,
) *chi.Mux {
	r := chi.NewRouter()

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization"},
			AllowCredentials: true,
			MaxAge:           84600,
		}))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	links := newLinkHandler(linkUseCase, newValidator())
	reports := newReportHandler(reportUseCase)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", handlePing)

		r.Post("/redirect", links.resolve)

		r.Route("/links", func(r chi.Router) {
			r.With(auth.OptionalAuth).Post("/", links.createLink)
			r.Get("/availability/{alias}", links.checkAvailability)
			r.With(auth.RequireAuth).Get("/{alias}/analytics", reports.linkAnalytics)
		})

		r.With(auth.RequireAuth).Get("/dashboard", reports.dashboard)
	})

	r.Get("/{alias}", links.redirect)

	return r
}
