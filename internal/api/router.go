package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint (no auth, like other exporters on the LAN)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Get("/system", s.handleSystem)
			r.Get("/instances", s.handleListInstances)
			r.Post("/instances/{instance}/rpc/{method}", s.handleInstanceRPC)

			// Any procedure by name
			r.Post("/rpc/{method}", s.handleRPC)

			r.Route("/components", func(r chi.Router) {
				r.Get("/", s.handleListComponents)
				r.Post("/", s.handleAddComponent)
				r.Get("/status", s.handleComponentStatus)

				r.Route("/{id}", func(r chi.Router) {
					r.Delete("/", s.handleRemoveComponent)
					r.Post("/actions/{action}", s.handleExecuteAction)
				})
			})

			r.Route("/bindings", func(r chi.Router) {
				r.Get("/", s.handleListBindings)
				r.Post("/", s.handleAddBinding)
				r.Delete("/", s.handleRemoveBinding)
				r.Get("/status", s.handleBindingStatus)
			})

			r.Get("/plugins", s.handleListPlugins)
			r.Post("/store/save", s.handleSaveStore)
		})
	})

	return r
}
