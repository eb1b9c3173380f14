package api

import (
	"net/http"
	"time"
)

// HealthResponse reports liveness and which optional stores are wired.
type HealthResponse struct {
	Status string `json:"status"`
	Ledger bool   `json:"ledger"`
	Audit  bool   `json:"audit"`
}

// HealthHandler responds with a simple status check.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.finish(w, "health", r.Method, start, http.StatusOK, HealthResponse{
		Status: "ok",
		Ledger: s.Runs != nil,
		Audit:  s.Analytics != nil,
	})
}
