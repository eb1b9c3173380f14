package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/patrickwarner/openwrap-setup/internal/models"
)

// exchangeRates is a static table; live rates are not fetched.
var exchangeRates = map[string]map[string]string{
	"USD": {"INR": "83.0", "EUR": "0.92", "GBP": "0.79", "JPY": "150.0"},
	"INR": {"USD": "0.012", "EUR": "0.011", "GBP": "0.0095", "JPY": "1.81"},
	"EUR": {"USD": "1.09", "INR": "90.2", "GBP": "0.86", "JPY": "163.0"},
	"GBP": {"USD": "1.27", "INR": "105.1", "EUR": "1.16", "JPY": "190.0"},
	"JPY": {"USD": "0.0067", "INR": "0.55", "EUR": "0.0061", "GBP": "0.0053"},
}

// ExchangeRate returns the multiplier converting from into to. When only the
// reverse pair is known its reciprocal is used. ok is false for pairs outside
// the table.
func ExchangeRate(from, to string) (rate decimal.Decimal, ok bool) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), true
	}
	if v, found := exchangeRates[from][to]; found {
		return decimal.RequireFromString(v), true
	}
	if v, found := exchangeRates[to][from]; found {
		return decimal.NewFromInt(1).DivRound(decimal.RequireFromString(v), 8), true
	}
	return decimal.NewFromInt(1), false
}

// ConvertRanges scales start, end and granularity by rate, rounded to cents.
// Catch-all granularity is left as the sentinel.
func ConvertRanges(ranges []models.PriceRange, rate decimal.Decimal) []models.PriceRange {
	out := make([]models.PriceRange, len(ranges))
	for i, r := range ranges {
		c := r
		c.Start = r.Start.Mul(rate).Round(2)
		c.End = r.End.Mul(rate).Round(2)
		if !r.IsCatchAll() {
			c.Granularity = r.Granularity.Mul(rate).Round(2)
		}
		out[i] = c
	}
	return out
}
