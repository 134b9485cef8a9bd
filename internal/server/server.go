package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/sitegauge/sitegauge/internal/app"
	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/store"
)

// Server is the HTTP + WebSocket API surface.
type Server struct {
	cfg      Config
	runner   *app.Runner
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewServer wires the routes around an app.Runner.
func NewServer(cfg Config, runner *app.Runner, logger logging.Logger) (*Server, error) {
	if runner == nil {
		return nil, errors.New("server: nil runner")
	}
	if logger == nil {
		return nil, errors.New("server: nil logger")
	}

	s := &Server{
		cfg:    cfg,
		runner: runner,
		router: chi.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: tighten for production
				return true
			},
		},
		logger: logger.With(logging.Field{Key: "component", Value: "server"}),
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	r.Options("/scans", s.optionsHandler("GET, POST"))
	r.Options("/scans/{scanID}", s.optionsHandler("GET"))

	r.Post("/scans", s.handleCreateScan)
	r.Get("/scans", s.handleListScans)
	r.Get("/scans/{scanID}", s.handleGetScan)
	r.Get("/ws/scans/{scanID}", s.handleScanEvents)

	r.Get("/healthz", s.handleHealth)
}

// ServeHTTP lets the Server be mounted directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start blocks serving HTTP on the configured address.
func (s *Server) Start() error {
	s.logger.Info("http server listening", logging.Field{Key: "addr", Value: s.cfg.Addr})
	return http.ListenAndServe(s.cfg.Addr, s.router)
}

func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	var req CreateScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "body must be JSON with a non-empty url")
		return
	}

	job, err := s.runner.StartScan(req.URL)
	if err != nil {
		if errors.Is(err, app.ErrRateLimited) {
			s.writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, CreateScanResponse{
		ScanID: job.ID,
		Status: string(job.Status),
	})
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	// Prefer the in-memory job while the scan is running; fall through to
	// the store for anything persisted (including restarts).
	if job, ok := s.runner.Snapshot(scanID); ok {
		if job.Status != app.JobDone {
			s.writeJSON(w, http.StatusOK, job)
			return
		}
		s.writeJSON(w, http.StatusOK, job.Record)
		return
	}

	rec, err := s.runner.Store().Get(r.Context(), scanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		s.logger.Error("loading scan failed",
			logging.Field{Key: "scan_id", Value: scanID},
			logging.Field{Key: "error", Value: err.Error()})
		s.writeError(w, http.StatusInternalServerError, "loading scan failed")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.runner.Store().Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing scans failed", logging.Field{Key: "error", Value: err.Error()})
		s.writeError(w, http.StatusInternalServerError, "listing scans failed")
		return
	}
	if records == nil {
		records = []*store.Record{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

// handleScanEvents streams job events until the scan finishes or the client
// goes away.
func (s *Server) handleScanEvents(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	job, ok := s.runner.Job(scanID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "scan not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			logging.Field{Key: "scan_id", Value: scanID},
			logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	for ev := range job.Events {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(allow string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", allow)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response failed", logging.Field{Key: "error", Value: err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}
