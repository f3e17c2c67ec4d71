package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docslot/internal/config"
	"github.com/dgallion1/docslot/internal/generate"
	"github.com/dgallion1/docslot/internal/pipeline"
)

// Server is the HTTP API server for docslot.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	llm          generate.Instrumented
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. llm may be nil when
// the configured generator makes no network calls.
func NewServer(orch *pipeline.Orchestrator, llm generate.Instrumented, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		llm:          llm,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.DocslotAPIKey, s.log))

		r.Route("/api/documents", func(r chi.Router) {
			r.Post("/upload", s.handleUpload)
			r.Post("/batch", s.handleBatch)
			r.Get("/jobs/{jobID}", s.handleJobStatus)
			r.Get("/jobs/{jobID}/download", s.handleDownload)
			r.Get("/jobs/{jobID}/preview", s.handlePreview)
			r.Post("/analyze", s.handleAnalyze)
			r.Post("/process/{analysisID}", s.handleProcess)
		})
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
