package pricing

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/patrickwarner/openwrap-setup/internal/models"
)

// Column headers accepted in range files.
const (
	colStart       = "start_range"
	colEnd         = "end_range"
	colGranularity = "granularity"
	colRateID      = "rate_id"
)

// LoadRanges reads price ranges from a .csv or .xlsx file. The first row must
// be a header naming start_range, end_range, granularity and optionally
// rate_id; column order is free.
func LoadRanges(path string) ([]models.PriceRange, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return loadXLSX(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ranges: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadRangesCSV(f)
}

// ReadRangesCSV parses CSV range rows from r.
func ReadRangesCSV(r io.Reader) ([]models.PriceRange, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return parseRows(rows)
}

func loadXLSX(path string) ([]models.PriceRange, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) ([]models.PriceRange, error) {
	if len(rows) == 0 {
		return nil, ErrNoRanges
	}
	idx := map[string]int{}
	for i, h := range rows[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{colStart, colEnd, colGranularity} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("range file missing %s column", col)
		}
	}

	cell := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var ranges []models.PriceRange
	for n, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		r, err := ParseRange(cell(row, colStart), cell(row, colEnd), cell(row, colGranularity), cell(row, colRateID))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		ranges = append(ranges, r)
	}
	if len(ranges) == 0 {
		return nil, ErrNoRanges
	}
	return ranges, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
