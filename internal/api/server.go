package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/plandag/internal/config"
	"github.com/dgallion1/plandag/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server serves the compile and document endpoints.
type Server struct {
	http.Handler

	orchestrator *pipeline.Orchestrator
	log          *slog.Logger
	cfg          config.Config
}

// NewServer wires the routes. Everything except /health requires the API key.
func NewServer(orch *pipeline.Orchestrator, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{orchestrator: orch, log: log, cfg: cfg}
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, RequestLogger(s.log), middleware.Recoverer)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey))

		r.Post("/compile", s.handleCompile)
		r.Post("/compile/batch", s.handleBatchCompile)
		r.Get("/stats/compile", s.handleCompileStats)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Post("/", s.handleCreateDocument)
			r.Route("/{docID}", func(r chi.Router) {
				r.Get("/", s.handleGetDocument)
				r.Put("/", s.handleUpdateDocument)
				r.Delete("/", s.handleDeleteDocument)
				r.Get("/dag", s.handleGetDAG)
			})
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
