package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/xfix/internal/state"
	"github.com/JakeFAU/xfix/internal/store"
	"github.com/JakeFAU/xfix/internal/telemetry"
	"github.com/JakeFAU/xfix/internal/worker"
)

// StateReader exposes a copy of the persisted agent state.
type StateReader interface {
	Snapshot() state.Document
}

// LoopReporter reports the orchestrator lifecycle state.
type LoopReporter interface {
	State() worker.State
}

// Deps are the collaborators served by the admin API. Audit may be nil.
type Deps struct {
	State  StateReader
	Loop   LoopReporter
	Audit  store.AuditRepository
	Logger *zap.Logger
}

// Server wires admin HTTP handlers.
type Server struct {
	router chi.Router
	deps   Deps
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &Server{deps: deps}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(deps.Logger))
	r.Use(recoverMiddleware(deps.Logger))
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	audit := NewAuditHandler(deps.Audit, deps.Logger)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", s.getState)
		r.Route("/runs/{run_id}", func(r chi.Router) {
			r.Get("/", audit.GetRun)
			r.Get("/outcomes", audit.ListOutcomes)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz is ready while the loop is running.
func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Loop == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	loopState := s.deps.Loop.State()
	switch loopState {
	case worker.StateShuttingDown, worker.StateStopped:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": string(loopState)})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "loop": string(loopState)})
	}
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	if s.deps.State == nil {
		writeError(w, http.StatusServiceUnavailable, "state unavailable")
		return
	}
	doc := s.deps.State.Snapshot()
	writeJSON(w, http.StatusOK, stateDTO{
		Cursor:      doc.Cursor,
		LastUpdated: doc.LastUpdated,
		RetryCount:  len(doc.Retries),
		Retries:     doc.Retries,
		Failed:      doc.Failed,
		Backoff:     doc.Backoff,
	})
}

type stateDTO struct {
	Cursor      *string                      `json:"cursor"`
	LastUpdated *string                      `json:"last_updated"`
	RetryCount  int                          `json:"retry_count"`
	Retries     map[string]state.RetryRecord `json:"retries"`
	Failed      []state.Failure              `json:"failed"`
	Backoff     state.Backoff                `json:"backoff"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
