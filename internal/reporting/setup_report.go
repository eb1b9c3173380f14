// Package reporting summarizes setup activity recorded in ClickHouse.
package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DailyActivity counts the objects created on one day for one setup type.
type DailyActivity struct {
	Date      time.Time `json:"date"`
	SetupType string    `json:"setup_type"`
	Orders    int64     `json:"orders"`
	LineItems int64     `json:"line_items"`
	Creatives int64     `json:"creatives"`
	LICAs     int64     `json:"licas"`
	Updates   int64     `json:"updates"`
}

// RunActivity is the per-run breakdown, largest runs first.
type RunActivity struct {
	RunID     string        `json:"run_id"`
	SetupType string        `json:"setup_type"`
	Started   time.Time     `json:"started"`
	Finished  time.Time     `json:"finished"`
	Duration  time.Duration `json:"duration"`
	Events    int64         `json:"events"`
	LineItems int64         `json:"line_items"`
}

// SetupReport covers the trailing Days days.
type SetupReport struct {
	Days    int             `json:"days"`
	Totals  DailyActivity   `json:"totals"`
	Daily   []DailyActivity `json:"daily"`
	TopRuns []RunActivity   `json:"top_runs"`
}

// GenerateSetupReport queries setup_events for the last days days and
// returns daily totals per setup type plus the limit largest runs.
func GenerateSetupReport(ctx context.Context, db *sql.DB, days, limit int) (*SetupReport, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 {
		limit = 10
	}
	report := &SetupReport{Days: days}

	daily, err := getDailyActivity(ctx, db, days)
	if err != nil {
		return nil, fmt.Errorf("get daily activity: %w", err)
	}
	report.Daily = daily

	for _, d := range daily {
		report.Totals.Orders += d.Orders
		report.Totals.LineItems += d.LineItems
		report.Totals.Creatives += d.Creatives
		report.Totals.LICAs += d.LICAs
		report.Totals.Updates += d.Updates
	}

	runs, err := getTopRuns(ctx, db, days, limit)
	if err != nil {
		return nil, fmt.Errorf("get top runs: %w", err)
	}
	report.TopRuns = runs
	return report, nil
}

func getDailyActivity(ctx context.Context, db *sql.DB, days int) ([]DailyActivity, error) {
	query := `
		SELECT
			toDate(timestamp) AS date,
			setup_type,
			countIf(kind = 'order') AS orders,
			countIf(kind = 'line_item') AS line_items,
			countIf(kind = 'creative') AS creatives,
			countIf(kind = 'lica') AS licas,
			countIf(kind = 'line_item_update') AS updates
		FROM setup_events
		WHERE timestamp >= now() - INTERVAL ? DAY
		GROUP BY date, setup_type
		ORDER BY date DESC, setup_type`

	rows, err := db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("query daily activity: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []DailyActivity
	for rows.Next() {
		var d DailyActivity
		if err := rows.Scan(&d.Date, &d.SetupType, &d.Orders, &d.LineItems, &d.Creatives, &d.LICAs, &d.Updates); err != nil {
			return nil, fmt.Errorf("scan daily activity: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func getTopRuns(ctx context.Context, db *sql.DB, days, limit int) ([]RunActivity, error) {
	query := `
		SELECT
			run_id,
			any(setup_type) AS setup_type,
			min(timestamp) AS started,
			max(timestamp) AS finished,
			count() AS events,
			countIf(kind = 'line_item') AS line_items
		FROM setup_events
		WHERE timestamp >= now() - INTERVAL ? DAY
		GROUP BY run_id
		ORDER BY events DESC
		LIMIT ?`

	rows, err := db.QueryContext(ctx, query, days, limit)
	if err != nil {
		return nil, fmt.Errorf("query top runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []RunActivity
	for rows.Next() {
		var r RunActivity
		if err := rows.Scan(&r.RunID, &r.SetupType, &r.Started, &r.Finished, &r.Events, &r.LineItems); err != nil {
			return nil, fmt.Errorf("scan run activity: %w", err)
		}
		r.Duration = r.Finished.Sub(r.Started)
		out = append(out, r)
	}
	return out, rows.Err()
}
