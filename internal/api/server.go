// Package api exposes the chunking pipeline over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dgallion1/pagechunk/internal/config"
	"github.com/dgallion1/pagechunk/internal/pathstore"
	"github.com/dgallion1/pagechunk/internal/pipeline"
	"github.com/dgallion1/pagechunk/internal/store"
)

// DocumentStore is the part of the result store the API reads and deletes.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*store.Record, error)
	List(ctx context.Context, limit, offset int) ([]store.Summary, error)
	Delete(ctx context.Context, id string) error
}

// NodeStore is the part of the pathstore client the API uses.
type NodeStore interface {
	ListChildren(ctx context.Context, key string, limit int) ([]pathstore.Node, error)
	DeleteNode(ctx context.Context, key string, recursive bool) error
}

// Server is the HTTP API server for pagechunk.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	docs         DocumentStore // nil when no result store is configured
	nodes        NodeStore     // nil when publishing is off
	log          zerolog.Logger
	cfg          *config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, docs DocumentStore, nodes NodeStore, cfg *config.Config, log zerolog.Logger) *Server {
	s := &Server{
		orchestrator: orch,
		docs:         docs,
		nodes:        nodes,
		log:          log.With().Str("component", "api").Logger(),
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
		r.Use(AuthMiddleware(s.cfg.Server.APIKey))

		r.Post("/api/chunk", s.handleChunk)
		r.Get("/api/chunk/{jobID}/status", s.handleChunkStatus)
		r.Get("/api/chunk/{jobID}/result", s.handleChunkResult)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
		r.Get("/api/documents/{docID}/chunks", s.handleDocumentChunks)

		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"queue_depth":        s.orchestrator.QueueDepth(),
		"tracked_jobs":       s.orchestrator.ActiveJobs(),
		"workers":            s.cfg.Pipeline.WorkerCount,
		"chunking":           s.orchestrator.Processor().Chunking(),
		"latency":            s.orchestrator.Latency(),
		"store_enabled":      s.docs != nil,
		"publishing_enabled": s.nodes != nil,
	})
}
