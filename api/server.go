package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/fleet-rental-sim/fleet/config"
	"github.com/wricardo/fleet-rental-sim/fleet/runs"
	"github.com/wricardo/fleet-rental-sim/fleet/service"
	"github.com/wricardo/fleet-rental-sim/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.FleetService
	hub     *websocket.Hub
	router  *mux.Router
	log     *zap.Logger
}

// NewServer creates a new API server. hub may be nil, which disables /ws.
func NewServer(fleetService service.FleetService, hub *websocket.Hub, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		service: fleetService,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     log,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("", s.handleBanner).Methods("GET")
	api.HandleFunc("/", s.handleBanner).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Runs
	api.HandleFunc("/runs", s.handleStartRun).Methods("POST")
	api.HandleFunc("/runs", s.handleListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", s.handleGetRun).Methods("GET")
	api.HandleFunc("/runs/{id}", s.handleDeleteRun).Methods("DELETE")
	api.HandleFunc("/runs/{id}/cancel", s.handleCancelRun).Methods("POST")

	// Results
	api.HandleFunc("/runs/{id}/faults", s.handleFaults).Methods("GET")
	api.HandleFunc("/runs/{id}/invoices", s.handleInvoices).Methods("GET")
	api.HandleFunc("/runs/{id}/reports/summary", s.handleSummary).Methods("GET")
	api.HandleFunc("/runs/{id}/reports/daily", s.handleDaily).Methods("GET")
	api.HandleFunc("/runs/{id}/reports/top-vehicles", s.handleTopVehicles).Methods("GET")

	// Configuration
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors to HTTP statuses
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, runs.ErrRunNotFound), errors.Is(err, config.ErrConfigNotFound):
		status = http.StatusNotFound
	case errors.Is(err, runs.ErrInvalidRunID), errors.Is(err, service.ErrInvalidOptions):
		status = http.StatusBadRequest
	case errors.Is(err, runs.ErrRunFinished), errors.Is(err, runs.ErrRunActive):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	respondError(w, status, err.Error())
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "fleet-rental-sim",
		"message": "Fleet rental simulation API",
		"endpoints": []string{
			"POST /api/runs",
			"GET /api/runs",
			"GET /api/runs/{id}",
			"POST /api/runs/{id}/cancel",
			"GET /api/runs/{id}/faults",
			"GET /api/runs/{id}/invoices",
			"GET /api/runs/{id}/reports/summary",
			"GET /api/runs/{id}/reports/daily",
			"GET /api/runs/{id}/reports/top-vehicles",
			"GET /api/configs",
			"GET /ws?run={id}",
		},
	})
}

// Run Handlers

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var opts service.RunOptions
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	run, err := s.service.StartRun(r.Context(), opts)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.log.Info("run accepted", zap.String("run_id", run.ID), zap.String("config", run.ConfigName))
	respondJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListRuns(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := list[:0]
		for _, run := range list {
			if string(run.Status) == status {
				filtered = append(filtered, run)
			}
		}
		list = filtered
	}
	total := len(list)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(list) {
			list = list[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(list),
		"total": total,
		"runs":  list,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]
	if err := s.service.DeleteRun(r.Context(), runID); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Run %s deleted", runID),
	})
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]
	if err := s.service.CancelRun(r.Context(), runID); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"message": fmt.Sprintf("Run %s cancellation requested", runID),
	})
}

// Result Handlers

func (s *Server) handleFaults(w http.ResponseWriter, r *http.Request) {
	faults, err := s.service.Faults(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(faults),
		"faults": faults,
	})
}

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.Invoices(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(rows),
		"invoices": rows,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.SummaryReport(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, summary.Text())
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	daily, err := s.service.DailyReports(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if date := r.URL.Query().Get("date"); date != "" {
		for _, d := range daily {
			if d.Date.Format("02.01.2006") == date || d.Date.Format("2006-01-02") == date {
				respondJSON(w, http.StatusOK, d)
				return
			}
		}
		respondError(w, http.StatusNotFound, fmt.Sprintf("no invoices on %s", date))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(daily),
		"days":  daily,
	})
}

func (s *Server) handleTopVehicles(w http.ResponseWriter, r *http.Request) {
	top, err := s.service.TopVehicles(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, top)
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if configs == nil {
		configs = []*config.Info{}
	}
	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.GetConfig(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "live events are disabled", http.StatusServiceUnavailable)
		return
	}
	runID := r.URL.Query().Get("run")
	if runID == "" {
		http.Error(w, "run parameter required", http.StatusBadRequest)
		return
	}

	if _, err := s.service.GetRun(r.Context(), runID); err != nil {
		http.Error(w, "Invalid run", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, runID)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
