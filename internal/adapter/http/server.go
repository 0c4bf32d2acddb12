package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

// Dashboard answers the risk table queries served over HTTP.
type Dashboard interface {
	Risk(ctx context.Context, date time.Time) ([]domain.RiskRecord, error)
	Summary(ctx context.Context, date time.Time) ([]domain.StationSummary, error)
	Refresh()
}

// Server exposes the dashboard plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	dashboard  Dashboard
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /, /api/risk, /api/summary,
// /api/refresh, /healthz, /readyz, and /metrics routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, dashboard Dashboard, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		dashboard: dashboard,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/risk", s.handleRisk)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /{$}", s.handlePage)

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

type riskResponse struct {
	Date    string              `json:"date"`
	Records []domain.RiskRecord `json:"records"`
}

type summaryResponse struct {
	Date     string                  `json:"date"`
	Stations []domain.StationSummary `json:"stations"`
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	date, ok := s.queryDate(w, r)
	if !ok {
		return
	}
	records, err := s.dashboard.Risk(r.Context(), date)
	if err != nil {
		s.internalError(w, "risk query failed", err)
		return
	}
	if records == nil {
		records = []domain.RiskRecord{}
	}
	writeJSON(w, http.StatusOK, riskResponse{Date: date.Format(domain.DateLayout), Records: records})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	date, ok := s.queryDate(w, r)
	if !ok {
		return
	}
	stations, err := s.dashboard.Summary(r.Context(), date)
	if err != nil {
		s.internalError(w, "summary query failed", err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Date: date.Format(domain.DateLayout), Stations: stations})
}

// handleRefresh purges the dashboard cache. Form posts from the page are
// redirected back to it; API clients get JSON.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.dashboard.Refresh()

	if isFormPost(r) {
		target := "/"
		if date, err := domain.ParseDate(r.PostFormValue("date")); err == nil {
			target += "?" + url.Values{"date": {date.Format(domain.DateLayout)}}.Encode()
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func isFormPost(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data"
}

// queryDate reads ?date=YYYY-MM-DD, defaulting to today in Recife. It writes
// a 400 response and reports false when the value is malformed.
func (s *Server) queryDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return domain.Today(), true
	}
	date, err := domain.ParseDate(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
