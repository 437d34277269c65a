// Package server exposes the memory core over HTTP: the platform-event layer
// posts message events here, and the reply layer fetches context packs.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tidemark-ai/recollect/internal/config"
	"github.com/tidemark-ai/recollect/internal/db"
	"github.com/tidemark-ai/recollect/internal/logging"
	"github.com/tidemark-ai/recollect/internal/memory"
	"github.com/tidemark-ai/recollect/internal/retention"
)

// Server wires the memory components behind the HTTP surface
type Server struct {
	cfg       *config.Config
	store     *db.Store
	ingestor  *memory.Ingestor
	builder   *memory.Builder
	scheduler *retention.Scheduler
	http      *http.Server
}

// New creates the HTTP server around the given components
func New(cfg *config.Config, store *db.Store, ingestor *memory.Ingestor, builder *memory.Builder, scheduler *retention.Scheduler) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		ingestor:  ingestor,
		builder:   builder,
		scheduler: scheduler,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/events/message", s.handleMessageCreate)
		r.Patch("/events/message/{sourceID}", s.handleMessageUpdate)
		r.Delete("/events/message/{sourceID}", s.handleMessageDelete)

		r.Route("/threads/{threadID}", func(r chi.Router) {
			r.Get("/context", s.handleContext)
			r.Get("/summary", s.handleSummary)
			r.Post("/reply", s.handleReply)
			r.Post("/state", s.handleState)
		})

		r.Post("/admin/cleanup", s.handleCleanup)
	})

	s.http = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving HTTP until Shutdown
func (s *Server) ListenAndServe() error {
	logging.Infof("HTTP server listening on %s", s.cfg.Server.Addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
