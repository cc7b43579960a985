// Package server exposes the assertion log and the promoted graph over a
// read-only HTTP API. It never mutates the store.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-kg/ingest-cli/internal/metrics"
	"github.com/veridian-kg/ingest-cli/internal/model"
	"github.com/veridian-kg/ingest-cli/internal/store"
)

// defaultPageSize bounds unpaged list queries.
const defaultPageSize = 100

// Server serves decision and information queries.
type Server struct {
	store   store.Store
	metrics *metrics.Metrics
}

// New creates a server over the store. Metrics may be nil.
func New(st store.Store, m *metrics.Metrics) *Server {
	return &Server{store: st, metrics: m}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method("GET", "/metrics", s.metrics.Handler())
	}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/decisions", s.handleDecisions)
		r.Get("/information", s.handleListInformation)
		r.Get("/information/{fingerprint}", s.handleGetInformation)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.LogFilter{
		DocumentID: q.Get("document"),
		Decision:   model.Decision(q.Get("decision")),
		Reason:     model.ReasonCode(q.Get("reason")),
		Limit:      intParam(q.Get("limit"), defaultPageSize),
		Offset:     intParam(q.Get("offset"), 0),
	}

	entries, err := s.store.ListLogEntries(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": entries,
		"count":     len(entries),
	})
}

func (s *Server) handleListInformation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.InfoFilter{
		CanonicalID: q.Get("canonical"),
		DocumentID:  q.Get("document"),
		Limit:       intParam(q.Get("limit"), defaultPageSize),
		Offset:      intParam(q.Get("offset"), 0),
	}
	if tier := q.Get("tier"); tier != "" {
		parsed, ok := parseTier(tier)
		if !ok {
			writeError(w, http.StatusBadRequest, eris.Errorf("unknown tier %q", tier))
			return
		}
		filter.Tier = parsed
	}

	infos, err := s.store.ListInformation(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"information": infos,
		"count":       len(infos),
	})
}

func (s *Server) handleGetInformation(w http.ResponseWriter, r *http.Request) {
	fingerprint := chi.URLParam(r, "fingerprint")
	info, err := s.store.GetInformation(r.Context(), fingerprint)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, eris.Errorf("no information with fingerprint %s", fingerprint))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func parseTier(s string) (model.DefensibilityTier, bool) {
	for _, t := range model.Tiers() {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("server: request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
