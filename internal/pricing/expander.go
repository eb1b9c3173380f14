// Package pricing turns price ranges into the discrete CPM buckets that back
// one line item each.
//
// All walking happens on integer cents so repeated additions never drift;
// decimal strings are produced only when a bucket is emitted.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/patrickwarner/openwrap-setup/internal/models"
)

// ParseRange builds a PriceRange from the decimal strings found in forms and
// range files.
func ParseRange(start, end, granularity, rateID string) (models.PriceRange, error) {
	s, err := decimal.NewFromString(start)
	if err != nil {
		return models.PriceRange{}, fmt.Errorf("parse start %q: %w", start, err)
	}
	e, err := decimal.NewFromString(end)
	if err != nil {
		return models.PriceRange{}, fmt.Errorf("parse end %q: %w", end, err)
	}
	g, err := decimal.NewFromString(granularity)
	if err != nil {
		return models.PriceRange{}, fmt.Errorf("parse granularity %q: %w", granularity, err)
	}
	return models.PriceRange{Start: s, End: e, Granularity: g, RateID: rateID}, nil
}

// Expansion limits. A request over any of them fails with
// InvalidRangeError before anything is allocated.
const (
	// MaxBuckets caps the buckets, and so line items, of one expansion.
	MaxBuckets = 10000
	// MaxPwtecpValues caps the price labels across all buckets.
	MaxPwtecpValues = 200000
	// MaxPrice caps range bounds, in currency units.
	MaxPrice = 1000000
)

var maxPrice = decimal.NewFromInt(MaxPrice)

// Expand returns the buckets for every range, in input order. Ranges are
// expanded independently and concatenated without merging.
func Expand(ranges []models.PriceRange) ([]models.PriceBucket, error) {
	var totalBuckets, totalValues int64
	for i, r := range ranges {
		nb, nv, err := size(i, r)
		if err != nil {
			return nil, err
		}
		totalBuckets += nb
		totalValues += nv
		if totalBuckets > MaxBuckets {
			return nil, &InvalidRangeError{Index: i, Range: r, Reason: fmt.Sprintf("more than %d buckets", MaxBuckets)}
		}
		if totalValues > MaxPwtecpValues {
			return nil, &InvalidRangeError{Index: i, Range: r, Reason: fmt.Sprintf("more than %d price values", MaxPwtecpValues)}
		}
	}

	buckets := make([]models.PriceBucket, 0, totalBuckets)
	for _, r := range ranges {
		start, end := toCents(r.Start), toCents(r.End)
		if r.IsCatchAll() {
			buckets = append(buckets, catchAllBucket(r, start, end))
			continue
		}
		buckets = append(buckets, stepBuckets(r, start, end, toCents(r.Granularity))...)
	}
	return buckets, nil
}

// size validates range i and returns how many buckets and price values it
// expands to.
func size(i int, r models.PriceRange) (buckets, values int64, err error) {
	if r.Start.IsNegative() || r.End.IsNegative() {
		return 0, 0, &InvalidRangeError{Index: i, Range: r, Reason: "prices must not be negative"}
	}
	if r.End.GreaterThan(maxPrice) {
		return 0, 0, &InvalidRangeError{Index: i, Range: r, Reason: fmt.Sprintf("prices must not exceed %d", MaxPrice)}
	}
	start, end := toCents(r.Start), toCents(r.End)
	if end < start {
		return 0, 0, &InvalidRangeError{Index: i, Range: r, Reason: "end is below start"}
	}
	if r.IsCatchAll() {
		return 1, max(end/100-(start+99)/100+1, 0), nil
	}
	if r.Granularity.GreaterThan(maxPrice) {
		return 0, 0, &InvalidRangeError{Index: i, Range: r, Reason: fmt.Sprintf("granularity must not exceed %d", MaxPrice)}
	}
	step := toCents(r.Granularity)
	if step <= 0 {
		return 0, 0, &InvalidRangeError{Index: i, Range: r, Reason: "granularity must be at least 0.01"}
	}
	return (end-start)/step + 1, end - start + 1, nil
}

// catchAllBucket covers [start, end] with one bucket whose values are the
// whole units ceil(start)..floor(end), each rendered as "{n}.".
func catchAllBucket(r models.PriceRange, start, end int64) models.PriceBucket {
	lo := (start + 99) / 100
	hi := end / 100
	values := make([]string, 0, max(hi-lo+1, 0))
	for n := lo; n <= hi; n++ {
		values = append(values, fmt.Sprintf("%d.", n))
	}
	return models.PriceBucket{
		StartRange:   formatCents(start),
		EndRange:     formatCents(end),
		Granularity:  models.CatchAllGranularity,
		RateID:       r.RateID,
		PwtecpValues: values,
		IsCatchAll:   true,
		StartCents:   start,
	}
}

// stepBuckets walks [start, end] in steps of step cents. Each bucket holds
// the cents from its start up to, but excluding, the next bucket's start; the
// last bucket is clipped at end inclusive.
func stepBuckets(r models.PriceRange, start, end, step int64) []models.PriceBucket {
	gran := formatCents(step)
	buckets := make([]models.PriceBucket, 0, (end-start)/step+1)
	for cur := start; cur <= end; cur += step {
		upper := min(cur+step, end+1)
		values := make([]string, 0, upper-cur)
		for x := cur; x < upper; x++ {
			values = append(values, formatCents(x))
		}
		buckets = append(buckets, models.PriceBucket{
			StartRange:   formatCents(cur),
			Granularity:  gran,
			RateID:       r.RateID,
			PwtecpValues: values,
			StartCents:   cur,
		})
	}
	return buckets
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func formatCents(c int64) string {
	return decimal.New(c, -2).StringFixed(2)
}
