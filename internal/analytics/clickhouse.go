// Package analytics stores the audit trail of setup runs in ClickHouse.
package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/patrickwarner/openwrap-setup/internal/models"
	"github.com/patrickwarner/openwrap-setup/internal/reporting"
)

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = errors.New("analytics unavailable")

// AuditService records and reads setup events. Implementations return
// ErrUnavailable when the underlying storage is not configured.
type AuditService interface {
	RecordSetupEvents(ctx context.Context, events []models.SetupEvent) error
	EventsByRun(ctx context.Context, runID string) ([]models.SetupEvent, error)
}

var _ AuditService = (*Analytics)(nil)

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB *sql.DB
}

const createSQL = `CREATE TABLE IF NOT EXISTS setup_events (
    timestamp  DateTime64(3),
    run_id     String,
    kind       LowCardinality(String),
    object_id  Int64,
    parent_id  Int64,
    name       String,
    setup_type LowCardinality(String)
) ENGINE=MergeTree() ORDER BY (run_id, timestamp)`

const insertSQL = `INSERT INTO setup_events (timestamp, run_id, kind, object_id, parent_id, name, setup_type) VALUES (?, ?, ?, ?, ?, ?, ?)`

// InitClickHouse connects to ClickHouse and ensures the setup_events table exists.
func InitClickHouse(ctx context.Context, dsn string) (*Analytics, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(10)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return &Analytics{DB: db}, nil
}

// RecordSetupEvents writes events as one batch. The clickhouse driver sends
// every Exec of a prepared insert inside a transaction as a single block.
func (a *Analytics) RecordSetupEvents(ctx context.Context, events []models.SetupEvent) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := a.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		ts := ev.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, ts.UTC(), ev.RunID, ev.Kind, ev.ObjectID, ev.ParentID, ev.Name, string(ev.SetupType)); err != nil {
			_ = tx.Rollback()
			zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("run_id", ev.RunID))
			return fmt.Errorf("append %s event: %w", ev.Kind, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// EventsByRun returns all events for a run ordered by timestamp.
func (a *Analytics) EventsByRun(ctx context.Context, runID string) ([]models.SetupEvent, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	query := `SELECT timestamp, run_id, kind, object_id, parent_id, name, setup_type FROM setup_events WHERE run_id=? ORDER BY timestamp`
	rows, err := a.DB.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var events []models.SetupEvent
	for rows.Next() {
		var (
			ev        models.SetupEvent
			setupType string
		)
		if err := rows.Scan(&ev.Timestamp, &ev.RunID, &ev.Kind, &ev.ObjectID, &ev.ParentID, &ev.Name, &setupType); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.SetupType = models.SetupType(setupType)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

// SetupReport summarizes the last days days of setup events.
func (a *Analytics) SetupReport(ctx context.Context, days, limit int) (*reporting.SetupReport, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	return reporting.GenerateSetupReport(ctx, a.DB, days, limit)
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}
