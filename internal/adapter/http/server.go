package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/city-data-etl/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunSource exposes the outcome of the most recent pipeline run.
type RunSource interface {
	sharedobs.ReadinessChecker
	LastRun() (domain.RunReport, []domain.CityRecord, bool)
}

// Server exposes health, metrics, and read-only run results over HTTP.
type Server struct {
	httpServer *http.Server
	runs       RunSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and the
// /api/v1 routes.
func NewServer(addr string, runs RunSource, logger *slog.Logger) *Server {
	r := mux.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		runs:   runs,
		logger: logger,
	}

	r.HandleFunc("/healthz", sharedobs.LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/readyz", sharedobs.ReadinessHandler(runs)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/cities", s.handleCities).Methods(http.MethodGet)
	api.HandleFunc("/cities/{name}", s.handleCity).Methods(http.MethodGet)
	api.HandleFunc("/runs/last", s.handleLastRun).Methods(http.MethodGet)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type citiesResponse struct {
	RunID  string           `json:"run_id"`
	Count  int              `json:"count"`
	Cities []domain.CityRow `json:"cities"`
}

type runResponse struct {
	RunID      string                `json:"run_id"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	DurationMS int64                 `json:"duration_ms"`
	Sources    []domain.SourceReport `json:"sources"`
	Merge      domain.MergeReport    `json:"merge"`
	Enrich     domain.EnrichReport   `json:"enrich"`
	Emitted    int                   `json:"emitted"`
	SinkErrors []string              `json:"sink_errors,omitempty"`
}

func (s *Server) handleCities(w http.ResponseWriter, _ *http.Request) {
	report, cities, ok := s.runs.LastRun()
	if !ok {
		writeError(w, http.StatusNotFound, "no completed run")
		return
	}
	rows := make([]domain.CityRow, 0, len(cities))
	for _, c := range cities {
		rows = append(rows, domain.ToRow(c))
	}
	sharedobs.WriteJSON(w, http.StatusOK, citiesResponse{RunID: report.RunID, Count: len(rows), Cities: rows})
}

func (s *Server) handleCity(w http.ResponseWriter, r *http.Request) {
	_, cities, ok := s.runs.LastRun()
	if !ok {
		writeError(w, http.StatusNotFound, "no completed run")
		return
	}
	name := domain.NormalizeCityName(mux.Vars(r)["name"])
	for _, c := range cities {
		if c.Name == name {
			sharedobs.WriteJSON(w, http.StatusOK, domain.ToRow(c))
			return
		}
	}
	writeError(w, http.StatusNotFound, "city not found")
}

func (s *Server) handleLastRun(w http.ResponseWriter, _ *http.Request) {
	report, _, ok := s.runs.LastRun()
	if !ok {
		writeError(w, http.StatusNotFound, "no completed run")
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, runResponse{
		RunID:      report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		DurationMS: report.Duration().Milliseconds(),
		Sources:    report.Sources,
		Merge:      report.Merge,
		Enrich:     report.Enrich,
		Emitted:    report.Emitted,
		SinkErrors: report.SinkErrors,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
