package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/patrickwarner/openwrap-setup/internal/analytics"
	"github.com/patrickwarner/openwrap-setup/internal/models"
	"github.com/patrickwarner/openwrap-setup/internal/setup"
)

// RunResponse is a ledger row with the line items the run created.
type RunResponse struct {
	Run       *models.SetupRun         `json:"run"`
	LineItems []models.CreatedLineItem `json:"line_items"`
}

// GetRunHandler returns one run from the ledger.
func (s *Server) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "run"

	if s.Runs == nil {
		s.finish(w, endpoint, r.Method, start, http.StatusServiceUnavailable, errorBody{Error: "run ledger unavailable"})
		return
	}
	id := mux.Vars(r)["id"]
	run, err := s.Runs.GetRun(r.Context(), id)
	if err != nil {
		s.fail(w, r, endpoint, start, err)
		return
	}
	items, err := s.Runs.ListLineItems(r.Context(), id)
	if err != nil {
		s.fail(w, r, endpoint, start, err)
		return
	}
	s.finish(w, endpoint, r.Method, start, http.StatusOK, RunResponse{Run: run, LineItems: items})
}

// RunEventsHandler returns the audit trail of one run.
func (s *Server) RunEventsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "run_events"

	if s.Analytics == nil {
		s.fail(w, r, endpoint, start, analytics.ErrUnavailable)
		return
	}
	events, err := s.Analytics.EventsByRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, endpoint, start, err)
		return
	}
	if events == nil {
		events = []models.SetupEvent{}
	}
	s.finish(w, endpoint, r.Method, start, http.StatusOK, events)
}

// SetupReportHandler returns recent setup activity. Query parameters days
// and limit default to 7 and 10.
func (s *Server) SetupReportHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "setup_report"

	if s.Reports == nil {
		s.fail(w, r, endpoint, start, analytics.ErrUnavailable)
		return
	}
	days, err := queryInt(r, "days", 7)
	if err != nil {
		s.fail(w, r, endpoint, start, err)
		return
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		s.fail(w, r, endpoint, start, err)
		return
	}
	report, err := s.Reports.SetupReport(r.Context(), days, limit)
	if err != nil {
		s.fail(w, r, endpoint, start, err)
		return
	}
	s.finish(w, endpoint, r.Method, start, http.StatusOK, report)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", setup.ErrInvalidRequest, name)
	}
	return n, nil
}
