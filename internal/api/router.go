package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds and returns the Chi router with all routes configured.
// Reads are open; refreshing the weekly tables requires bearer auth.
// Rate limiting is applied globally: 60 requests per minute per IP.
func NewRouter(handlers *Handlers, token string, store, cache Pinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandlerFunc(store, cache, log))
		r.Get("/locations", handlers.ListLocations)
		r.Get("/regions", handlers.ListRegions)
		r.Get("/advisories/weekly", handlers.WeeklyAdvisory)
		r.Get("/advisories/tonight/{id}", handlers.TonightAdvisory)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(token))
			r.Post("/refresh", handlers.Refresh)
		})
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
