package models

import "github.com/shopspring/decimal"

// CatchAllGranularity marks a PriceRange that collapses into a single
// prefix-matched bucket instead of per-cent buckets.
const CatchAllGranularity = "-1"

// PriceRange is one row of bucket input: a [Start, End] span walked in steps
// of Granularity. RateID is an opaque tag carried onto every bucket.
type PriceRange struct {
	Start       decimal.Decimal `json:"start"`
	End         decimal.Decimal `json:"end"`
	Granularity decimal.Decimal `json:"granularity"`
	RateID      string          `json:"rate_id,omitempty"`
}

// IsCatchAll reports whether the range uses the -1 granularity sentinel.
func (r PriceRange) IsCatchAll() bool {
	return r.Granularity.Equal(decimal.NewFromInt(-1))
}

// PriceBucket is a single line item's worth of price coverage.
//
// For regular buckets PwtecpValues lists every cent in
// [StartRange, StartRange+Granularity) formatted with two decimals. For
// catch-all buckets it lists whole units rendered as "{n}." which are matched
// by prefix downstream.
type PriceBucket struct {
	StartRange   string   `json:"start_range"`
	EndRange     string   `json:"end_range,omitempty"`
	Granularity  string   `json:"granularity"`
	RateID       string   `json:"rate_id,omitempty"`
	PwtecpValues []string `json:"pwtecp_values"`
	IsCatchAll   bool     `json:"is_catch_all,omitempty"`

	// StartCents is StartRange in integer hundredths.
	StartCents int64 `json:"start_cents"`
}

// CPMMicros returns the bucket floor in micro currency units as expected by
// the ad server's Money type.
func (b PriceBucket) CPMMicros() int64 {
	return b.StartCents * 10_000
}
