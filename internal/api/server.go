// Package api exposes the scoring engine and trip store over a local REST
// surface plus a websocket event stream.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Aldentec/ATSMap-sub000/internal/metrics"
	"github.com/Aldentec/ATSMap-sub000/internal/scoring"
	"github.com/Aldentec/ATSMap-sub000/internal/store"
	"github.com/Aldentec/ATSMap-sub000/internal/telemetry"
	"github.com/Aldentec/ATSMap-sub000/internal/trip"
)

// Server represents the API server.
type Server struct {
	engine   *scoring.Engine
	detector *trip.Detector
	store    *store.Store
	hub      *Hub
	log      *slog.Logger
	router   *mux.Router
}

// NewServer creates a new API server.
func NewServer(engine *scoring.Engine, detector *trip.Detector, st *store.Store, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		engine:   engine,
		detector: detector,
		store:    st,
		hub:      hub,
		log:      logger.With(slog.String("component", "api")),
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Score endpoints
	s.router.HandleFunc("/api/v1/score/snapshot", s.handleSnapshot).Methods("GET")
	s.router.HandleFunc("/api/v1/score/breakdown", s.handleBreakdown).Methods("GET")
	s.router.HandleFunc("/api/v1/score/tooltip/{metric}", s.handleTooltip).Methods("GET")
	s.router.HandleFunc("/api/v1/score/reset", s.handleReset).Methods("POST")

	// Telemetry ingestion
	s.router.HandleFunc("/api/v1/telemetry", s.handleTelemetry).Methods("POST")

	// Trip endpoints
	s.router.HandleFunc("/api/v1/trips", s.handleTrips).Methods("GET")
	s.router.HandleFunc("/api/v1/trips/stats", s.handleTripStats).Methods("GET")
	s.router.HandleFunc("/api/v1/trips/export", s.handleTripExport).Methods("GET")

	// Live event stream
	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.HandleWS)
	}

	// Prometheus scrape endpoint
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(jsonMiddleware)
}

// Router returns the configured router wrapped with CORS for the local
// dashboard.
func (s *Server) Router() http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(s.router)
}

// Middleware
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" && r.URL.Path != "/metrics" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// Response helpers
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

// Handlers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.GetCurrentSnapshot())
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.GetScoreBreakdown())
}

func (s *Server) handleTooltip(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tooltip, err := s.engine.MetricTooltip(vars["metric"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, tooltip)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.engine.ResetSession()
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	var sample telemetry.Sample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if errs := telemetry.Validate(&sample); len(errs) > 0 {
		respondError(w, http.StatusBadRequest, errs[0])
		return
	}

	s.engine.UpdateFromSample(&sample)
	if s.detector != nil {
		s.detector.Observe(&sample)
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleTrips(w http.ResponseWriter, r *http.Request) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr != "" || endStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid start (use RFC3339)")
			return
		}
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid end (use RFC3339)")
			return
		}

		trips, err := s.store.GetTripsByDateRange(start, end)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, trips)
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	trips, err := s.store.GetRecentTrips(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, trips)
}

func (s *Server) handleTripStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStatistics()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTripExport(w http.ResponseWriter, r *http.Request) {
	trips, err := s.store.GetAllTrips()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="trips.csv"`)
	if err := store.WriteCSV(w, trips); err != nil {
		s.log.Error("trip export failed", slog.String("err", err.Error()))
	}
}
