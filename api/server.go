/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests from the dashboard

ROUTE GROUPS:
  /api/projects/*   Transcripts, analyses, duplicates, reconcile
  /api/admin/*      Migration, sweeps and data reset (dev only)
  /api/scenarios/*  Demo scenarios
  /healthz          Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Post("/reconcile", h.ReconcileProject)
				r.Get("/duplicates", h.ListDuplicates)

				r.Route("/transcripts", func(r chi.Router) {
					r.Get("/", h.ListTranscripts)
					r.Post("/", h.CreateTranscript)
					r.Patch("/{transcriptID}", h.UpdateTranscript)
					r.Delete("/{transcriptID}", h.DeleteTranscript)
				})

				r.Route("/analyses", func(r chi.Router) {
					r.Get("/", h.ListAnalyses)
					r.Put("/{analysisID}", h.SaveAnalysis)
					r.Delete("/{analysisID}", h.DeleteAnalysis)
				})
			})
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/migrate", h.RunMigration)
			r.Post("/sweep", h.RunSweep)
			r.Get("/sweeps", h.ListSweeps)
			r.Post("/reset", h.ResetData)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
