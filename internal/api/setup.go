package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/middleware"
	"github.com/patrickwarner/openwrap-setup/internal/models"
	"github.com/patrickwarner/openwrap-setup/internal/pricing"
	"github.com/patrickwarner/openwrap-setup/internal/setup"
)

// maxBodyBytes bounds request bodies; range lists are small.
const maxBodyBytes = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json: %v", setup.ErrInvalidRequest, err)
	}
	return nil
}

// BucketsRequest is the payload of POST /api/buckets.
type BucketsRequest struct {
	Ranges         []models.PriceRange `json:"ranges"`
	ExchangeRate   bool                `json:"exchange_rate,omitempty"`
	Currency       string              `json:"currency,omitempty"`
	TargetCurrency string              `json:"target_currency,omitempty"`
}

// BucketsResponse lists expanded buckets with their line item prices.
type BucketsResponse struct {
	Currency string          `json:"currency"`
	Buckets  []bucketPreview `json:"buckets"`
}

type bucketPreview struct {
	models.PriceBucket
	CPMMicros int64 `json:"cpm_micros"`
}

// BucketsHandler expands price ranges without touching the ad server.
func (s *Server) BucketsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "buckets"

	var req BucketsRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, endpoint, start, err)
		return
	}
	if len(req.Ranges) == 0 {
		s.fail(w, r, endpoint, start, pricing.ErrNoRanges)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	ranges := req.Ranges
	if req.ExchangeRate {
		if req.TargetCurrency == "" {
			s.fail(w, r, endpoint, start, fmt.Errorf("%w: target currency is required with exchange rate", setup.ErrInvalidRequest))
			return
		}
		rate, ok := pricing.ExchangeRate(currency, req.TargetCurrency)
		if !ok {
			middleware.LoggerFromRequest(r, s.Logger).Warn("no exchange rate, using 1",
				zap.String("from", currency), zap.String("to", req.TargetCurrency))
		}
		ranges = pricing.ConvertRanges(ranges, rate)
		currency = req.TargetCurrency
	}

	buckets, err := pricing.Expand(ranges)
	if err != nil {
		s.fail(w, r, endpoint, start, err)
		return
	}
	resp := BucketsResponse{Currency: currency, Buckets: make([]bucketPreview, len(buckets))}
	for i, b := range buckets {
		resp.Buckets[i] = bucketPreview{PriceBucket: b, CPMMicros: b.CPMMicros()}
	}
	s.finish(w, endpoint, r.Method, start, http.StatusOK, resp)
}

// PlanHandler runs a setup against an in-memory ad server and returns what
// would be created.
func (s *Server) PlanHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "plan"

	var req setup.Request
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, endpoint, start, err)
		return
	}
	logger := middleware.LoggerFromRequest(r, s.Logger)
	res, err := setup.Plan(r.Context(), req, s.Names, logger, s.Metrics)
	if err != nil {
		s.fail(w, r, endpoint, start, err)
		return
	}
	s.finish(w, endpoint, r.Method, start, http.StatusOK, res)
}

// SetupHandler executes a setup run against the configured ad server. A
// failed run still reports its id so the ledger can be inspected.
func (s *Server) SetupHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "setup"

	var req setup.Request
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, endpoint, start, err)
		return
	}
	res, err := s.Runner.Run(r.Context(), req)
	if err != nil {
		if res != nil {
			w.Header().Set("X-Run-ID", res.RunID)
		}
		s.fail(w, r, endpoint, start, err)
		return
	}
	s.finish(w, endpoint, r.Method, start, http.StatusCreated, res)
}

// VideoPositionHandler retargets existing line items to a video position.
func (s *Server) VideoPositionHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "video_position"

	var req setup.PositionRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, endpoint, start, err)
		return
	}
	res, err := s.Runner.UpdateVideoPositions(r.Context(), req)
	if err != nil {
		s.fail(w, r, endpoint, start, err)
		return
	}
	s.finish(w, endpoint, r.Method, start, http.StatusOK, res)
}
