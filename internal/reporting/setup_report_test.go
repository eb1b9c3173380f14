package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSetupReport(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM setup_events").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"date", "setup_type", "orders", "line_items", "creatives", "licas", "updates"}).
			AddRow(day, "WEB", 1, 40, 2, 80, 0).
			AddRow(day.AddDate(0, 0, -1), "ADPOD", 2, 12, 4, 24, 3))

	start := day.Add(9 * time.Hour)
	mock.ExpectQuery("GROUP BY run_id").
		WithArgs(3, 5).
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "setup_type", "started", "finished", "events", "line_items"}).
			AddRow("run-1", "WEB", start, start.Add(90*time.Second), 123, 40))

	report, err := GenerateSetupReport(context.Background(), db, 3, 5)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Days)
	require.Len(t, report.Daily, 2)
	assert.Equal(t, int64(3), report.Totals.Orders)
	assert.Equal(t, int64(52), report.Totals.LineItems)
	assert.Equal(t, int64(104), report.Totals.LICAs)
	assert.Equal(t, int64(3), report.Totals.Updates)
	require.Len(t, report.TopRuns, 1)
	assert.Equal(t, 90*time.Second, report.TopRuns[0].Duration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateSetupReport_Defaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM setup_events").WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"date", "setup_type", "orders", "line_items", "creatives", "licas", "updates"}))
	mock.ExpectQuery("GROUP BY run_id").WithArgs(7, 10).
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "setup_type", "started", "finished", "events", "line_items"}))

	report, err := GenerateSetupReport(context.Background(), db, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, report.Daily)
	assert.Empty(t, report.TopRuns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateSetupReport_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM setup_events").WillReturnError(errors.New("boom"))

	_, err = GenerateSetupReport(context.Background(), db, 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get daily activity")
}
