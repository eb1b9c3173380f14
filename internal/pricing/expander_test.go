package pricing

import (
	"errors"
	"reflect"
	"testing"

	"github.com/patrickwarner/openwrap-setup/internal/models"
)

func mustRange(t *testing.T, start, end, gran string) models.PriceRange {
	t.Helper()
	r, err := ParseRange(start, end, gran, "")
	if err != nil {
		t.Fatalf("parse range: %v", err)
	}
	return r
}

func TestExpand_CatchAllWholeUnits(t *testing.T) {
	buckets, err := Expand([]models.PriceRange{mustRange(t, "5.00", "7.00", "-1")})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	b := buckets[0]
	if !b.IsCatchAll || b.Granularity != "-1" {
		t.Errorf("expected catch-all bucket, got %+v", b)
	}
	want := []string{"5.", "6.", "7."}
	if !reflect.DeepEqual(b.PwtecpValues, want) {
		t.Errorf("values = %v, want %v", b.PwtecpValues, want)
	}
	if b.StartRange != "5.00" || b.EndRange != "7.00" {
		t.Errorf("unexpected bounds %s-%s", b.StartRange, b.EndRange)
	}
}

func TestExpand_CatchAllFractionalBounds(t *testing.T) {
	buckets, err := Expand([]models.PriceRange{mustRange(t, "5.50", "7.25", "-1")})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := []string{"6.", "7."}
	if !reflect.DeepEqual(buckets[0].PwtecpValues, want) {
		t.Errorf("values = %v, want %v", buckets[0].PwtecpValues, want)
	}

	buckets, err = Expand([]models.PriceRange{mustRange(t, "5.10", "5.90", "-1")})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(buckets[0].PwtecpValues) != 0 {
		t.Errorf("expected no whole unit inside 5.10-5.90, got %v", buckets[0].PwtecpValues)
	}
}

func TestExpand_PennyGranularity(t *testing.T) {
	buckets, err := Expand([]models.PriceRange{mustRange(t, "5.00", "5.02", "0.01")})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(buckets))
	}
	for i, want := range []string{"5.00", "5.01", "5.02"} {
		b := buckets[i]
		if b.StartRange != want {
			t.Errorf("bucket %d start = %s, want %s", i, b.StartRange, want)
		}
		if !reflect.DeepEqual(b.PwtecpValues, []string{want}) {
			t.Errorf("bucket %d values = %v", i, b.PwtecpValues)
		}
		if b.Granularity != "0.01" {
			t.Errorf("bucket %d granularity = %s", i, b.Granularity)
		}
	}
}

func TestExpand_TilesRangeWithoutGaps(t *testing.T) {
	buckets, err := Expand([]models.PriceRange{mustRange(t, "1.00", "3.00", "0.25")})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	// 1.00, 1.25, ... 3.00
	if len(buckets) != 9 {
		t.Fatalf("expected 9 buckets, got %d", len(buckets))
	}

	seen := map[string]bool{}
	var prev int64 = -1
	for _, b := range buckets {
		if b.StartCents <= prev {
			t.Fatalf("buckets not ascending at %s", b.StartRange)
		}
		prev = b.StartCents
		if len(b.PwtecpValues) == 0 || b.PwtecpValues[0] != b.StartRange {
			t.Errorf("bucket %s does not start with its own price: %v", b.StartRange, b.PwtecpValues)
		}
		for _, v := range b.PwtecpValues {
			if seen[v] {
				t.Errorf("value %s appears in two buckets", v)
			}
			seen[v] = true
		}
	}
	// every cent from 1.00 to 3.00 inclusive
	if len(seen) != 201 {
		t.Errorf("expected 201 distinct values, got %d", len(seen))
	}
	if !seen["1.00"] || !seen["2.99"] || !seen["3.00"] {
		t.Error("expected boundary cents to be covered")
	}
	if got := buckets[0].PwtecpValues; len(got) != 25 || got[24] != "1.24" {
		t.Errorf("first bucket values end at %v", got[len(got)-1])
	}
}

func TestExpand_StepNotDividingRange(t *testing.T) {
	buckets, err := Expand([]models.PriceRange{mustRange(t, "0.00", "1.00", "0.30")})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	starts := make([]string, len(buckets))
	for i, b := range buckets {
		starts[i] = b.StartRange
	}
	want := []string{"0.00", "0.30", "0.60", "0.90"}
	if !reflect.DeepEqual(starts, want) {
		t.Fatalf("starts = %v, want %v", starts, want)
	}
	last := buckets[len(buckets)-1].PwtecpValues
	if len(last) != 11 || last[len(last)-1] != "1.00" {
		t.Errorf("last bucket should be clipped at 1.00, got %v", last)
	}
}

func TestExpand_Idempotent(t *testing.T) {
	ranges := []models.PriceRange{
		mustRange(t, "0.01", "0.99", "0.05"),
		mustRange(t, "1.00", "20.00", "0.10"),
		mustRange(t, "20.00", "50.00", "-1"),
	}
	a, err := Expand(ranges)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	b, err := Expand(ranges)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("expanding the same ranges twice produced different buckets")
	}
}

func TestExpand_ConcatenatesInInputOrder(t *testing.T) {
	buckets, err := Expand([]models.PriceRange{
		mustRange(t, "10.00", "10.01", "0.01"),
		mustRange(t, "1.00", "1.00", "0.01"),
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(buckets) != 3 || buckets[2].StartRange != "1.00" {
		t.Fatalf("unexpected order: %+v", buckets)
	}
}

func TestExpand_RateIDCarried(t *testing.T) {
	r := mustRange(t, "1", "1.02", "0.01")
	r.RateID = "42"
	buckets, err := Expand([]models.PriceRange{r})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	for _, b := range buckets {
		if b.RateID != "42" {
			t.Errorf("rate id lost on %s", b.StartRange)
		}
	}
}

func TestExpand_InvalidRanges(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		gran  string
	}{
		{"zero granularity", "1", "2", "0"},
		{"sub-cent granularity", "1", "2", "0.001"},
		{"negative granularity", "1", "2", "-0.5"},
		{"end below start", "3", "2", "0.1"},
		{"negative start", "-1", "2", "0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Expand([]models.PriceRange{mustRange(t, tt.start, tt.end, tt.gran)})
			var ire *InvalidRangeError
			if !errors.As(err, &ire) {
				t.Fatalf("expected InvalidRangeError, got %v", err)
			}
			if ire.Index != 0 {
				t.Errorf("index = %d", ire.Index)
			}
		})
	}
}

func TestExpand_Limits(t *testing.T) {
	tests := []struct {
		name   string
		ranges [][3]string
		index  int
	}{
		{"too many buckets", [][3]string{{"0", "20000", "0.01"}}, 0},
		{"too many values in few buckets", [][3]string{{"0", "20000", "20000"}}, 0},
		{"limit crossed by a later range", [][3]string{{"0", "60", "0.01"}, {"60", "100", "0.01"}}, 1},
		{"price above cap", [][3]string{{"1", "1000000.01", "-1"}}, 0},
		{"catch-all spanning too many units", [][3]string{{"0", "1000000", "-1"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ranges []models.PriceRange
			for _, r := range tt.ranges {
				ranges = append(ranges, mustRange(t, r[0], r[1], r[2]))
			}
			buckets, err := Expand(ranges)
			var ire *InvalidRangeError
			if !errors.As(err, &ire) {
				t.Fatalf("expected InvalidRangeError, got %v (%d buckets)", err, len(buckets))
			}
			if ire.Index != tt.index {
				t.Errorf("index = %d, want %d", ire.Index, tt.index)
			}
		})
	}
}

func TestExpand_AtLimit(t *testing.T) {
	// 0.00 to 99.99 in cents is exactly MaxBuckets buckets
	buckets, err := Expand([]models.PriceRange{mustRange(t, "0", "99.99", "0.01")})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(buckets) != MaxBuckets {
		t.Errorf("buckets = %d, want %d", len(buckets), MaxBuckets)
	}
}

func TestExpand_Empty(t *testing.T) {
	buckets, err := Expand(nil)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(buckets) != 0 {
		t.Errorf("expected no buckets, got %d", len(buckets))
	}
}

func TestParseRange_RejectsGarbage(t *testing.T) {
	if _, err := ParseRange("abc", "1", "0.1", ""); err == nil {
		t.Error("expected parse error for start")
	}
	if _, err := ParseRange("1", "1", "x", ""); err == nil {
		t.Error("expected parse error for granularity")
	}
}
