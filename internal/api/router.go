package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint (no auth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Read-only diagnostics (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleSystemMetrics)
		r.Get("/connections", s.handleListConnections)
		r.Get("/items", s.handleListItems)
		r.Get("/items/{item}", s.handleGetItem)

		// Anything that reveals command history or drives outputs needs a token.
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/items/{item}/command", s.handleItemCommand)
			r.Get("/commands", s.handleListCommands)
			r.Get("/stream", s.handleStream)
		})
	})

	return r
}
