package api

import (
	"encoding/json"
	"net/http"

	"github.com/agentoven/console/internal/api/handlers"
	"github.com/agentoven/console/internal/api/middleware"
	"github.com/agentoven/console/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const serviceName = "agent-console"

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.NewAPIKeyAuth(cfg.APIKeys).Middleware)

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		// Websocket upgrades bypass compression.
		r.Get("/ws/sessions", h.SessionEvents)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5))

			// Agent registry
			r.Route("/agents", func(r chi.Router) {
				r.Get("/", h.ListAgents)
				r.Post("/", h.CreateAgent)
				r.Route("/{agentId}", func(r chi.Router) {
					r.Get("/", h.GetAgent)
					r.Delete("/", h.DeleteAgent)
					r.Put("/draft", h.SaveDraft)
					r.Delete("/draft", h.DiscardDraft)
					r.Post("/publish", h.PublishDraft)
					r.Post("/versions/{version}/restore", h.RestoreVersion)
					r.Put("/test-cases", h.UpdateTestCases)
					r.Post("/test-cases/run", h.RunTestCases)
					r.Post("/performance", h.ReviewPerformance)
				})
			})

			// Chat sessions
			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", h.ListSessions)
				r.Post("/", h.NewChat)
				r.Route("/{sessionId}", func(r chi.Router) {
					r.Get("/", h.GetSession)
					r.Delete("/", h.DeleteSession)
					r.Post("/select", h.SelectSession)
				})
			})

			r.Route("/chat", func(r chi.Router) {
				r.Get("/", h.ChatState)
				r.Post("/agent", h.SetActiveAgent)
				r.Post("/messages", h.SendMessage)
				r.Put("/messages/{messageId}", h.EditMessage)
				r.Delete("/messages/{messageId}", h.DeleteMessage)
				r.Post("/messages/{messageId}/feedback", h.SetFeedback)
				r.Post("/regenerate", h.Regenerate)
				r.Get("/suggestions", h.Suggestions)
				r.Get("/export", h.ExportChat)
			})

			// Evaluation
			r.Route("/suites", func(r chi.Router) {
				r.Get("/", h.ListSuites)
				r.Post("/", h.CreateSuite)
				r.Route("/{suiteId}", func(r chi.Router) {
					r.Get("/", h.GetSuite)
					r.Put("/", h.UpdateSuite)
					r.Delete("/", h.DeleteSuite)
					r.Put("/cases", h.UpdateSuiteCases)
					r.Post("/run", h.RunSuite)
					r.Get("/runs", h.ListSuiteRuns)
				})
			})
			r.Get("/runs", h.ListRuns)
			r.Get("/runs/{runId}", h.GetRun)

			// Connection settings
			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.UpdateSettings)
			r.Get("/remote/agents", h.ListRemoteAgents)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": serviceName,
		})
	}
}
