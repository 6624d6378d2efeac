// ABOUTME: Single-session HTTP surface over the referee engine behind a chi router.
// ABOUTME: Mirrors the engine-facing operations as JSON endpoints plus a rules search panel.

package web

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389-research/arbiter/referee"
	"github.com/2389-research/arbiter/rules"
)

// Server exposes one referee session over HTTP.
type Server struct {
	engine *referee.Engine
	store  rules.RuleStore
	router chi.Router
	addr   string
}

// ServerConfig holds the web surface configuration.
type ServerConfig struct {
	Addr   string
	Engine *referee.Engine
	Store  rules.RuleStore // optional; enables /rules/search
}

// NewServer builds the server and its routes.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	s := &Server{
		engine: cfg.Engine,
		store:  cfg.Store,
		addr:   cfg.Addr,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter constructs the chi router with all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/session", func(r chi.Router) {
		r.Post("/turns", s.handleStartTurns)
		r.Post("/messages", s.handleAppendMessages)
		r.Post("/end-turn", s.handleEndTurn)
		r.Post("/extract", s.handleExtract)
		r.Post("/narrate", s.handleNarrate)
		r.Get("/turn", s.handleCurrentTurn)
		r.Get("/context", s.handleContext)
	})

	r.Get("/rules/search", s.handleRulesSearch)

	return r
}

// Router returns the underlying router, for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe runs the server until the listener fails.
func (s *Server) ListenAndServe() error {
	log.Printf("component=web action=listen addr=%s", s.addr)
	return http.ListenAndServe(s.addr, s.router)
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("component=web action=encode_failed err=%v", err)
	}
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
