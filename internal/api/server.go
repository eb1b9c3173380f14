package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/analytics"
	"github.com/patrickwarner/openwrap-setup/internal/db"
	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/macros"
	"github.com/patrickwarner/openwrap-setup/internal/middleware"
	"github.com/patrickwarner/openwrap-setup/internal/models"
	"github.com/patrickwarner/openwrap-setup/internal/observability"
	"github.com/patrickwarner/openwrap-setup/internal/pricing"
	"github.com/patrickwarner/openwrap-setup/internal/reporting"
	"github.com/patrickwarner/openwrap-setup/internal/setup"
	"github.com/patrickwarner/openwrap-setup/internal/targeting"
)

// RunStore reads the run ledger.
type RunStore interface {
	GetRun(ctx context.Context, id string) (*models.SetupRun, error)
	ListLineItems(ctx context.Context, runID string) ([]models.CreatedLineItem, error)
}

// Reporter summarizes recorded setup activity.
type Reporter interface {
	SetupReport(ctx context.Context, days, limit int) (*reporting.SetupReport, error)
}

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger    *zap.Logger
	Runner    *setup.Runner
	Names     *macros.Service
	Runs      RunStore
	Analytics analytics.AuditService
	Reports   Reporter
	Metrics   observability.MetricsRegistry
}

// NewServer constructs a Server. runs and audit may be nil when the ledger
// or the audit store is not configured.
func NewServer(logger *zap.Logger, runner *setup.Runner, names *macros.Service, runs RunStore, audit analytics.AuditService, metrics observability.MetricsRegistry) *Server {
	return &Server{
		Logger:    logger,
		Runner:    runner,
		Names:     names,
		Runs:      runs,
		Analytics: audit,
		Metrics:   metrics,
	}
}

// Router registers every route. The returned handler is traced with
// otelhttp and carries a trace-aware logger in each request context.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	a := r.PathPrefix("/api").Subrouter()
	a.HandleFunc("/buckets", s.BucketsHandler).Methods("POST")
	a.HandleFunc("/plan", s.PlanHandler).Methods("POST")
	a.HandleFunc("/setup", s.SetupHandler).Methods("POST")
	a.HandleFunc("/video-position", s.VideoPositionHandler).Methods("POST")
	a.HandleFunc("/runs/{id}", s.GetRunHandler).Methods("GET")
	a.HandleFunc("/runs/{id}/events", s.RunEventsHandler).Methods("GET")
	a.HandleFunc("/reports/setup", s.SetupReportHandler).Methods("GET")

	var h http.Handler = middleware.WithTraceLogger(s.Logger)(r)
	return otelhttp.NewHandler(h, "owsetup-api")
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// helper function to write JSON response
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps run errors onto HTTP statuses.
func statusFor(err error) int {
	var (
		rangeErr   *pricing.InvalidRangeError
		setupErr   *models.UnsupportedSetupTypeError
		remoteErr  *gam.RemoteError
		resolveErr *targeting.ResolutionError
	)
	switch {
	case errors.Is(err, setup.ErrInvalidRequest), errors.Is(err, pricing.ErrNoRanges),
		errors.As(err, &rangeErr), errors.As(err, &setupErr):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, setup.ErrTraffickerNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, analytics.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &remoteErr), errors.As(err, &resolveErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// finish writes v or err and records the request metrics.
func (s *Server) finish(w http.ResponseWriter, endpoint, method string, start time.Time, status int, v interface{}) {
	writeJSON(w, status, v)
	s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, endpoint string, start time.Time, err error) {
	status := statusFor(err)
	logger := middleware.LoggerFromRequest(r, s.Logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("endpoint", endpoint), zap.Error(err))
	} else {
		logger.Info("request rejected", zap.String("endpoint", endpoint), zap.Error(err))
	}
	s.finish(w, endpoint, r.Method, start, status, errorBody{Error: err.Error()})
}
