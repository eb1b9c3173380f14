package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/models"
)

// ErrRunNotFound is returned when no ledger row has the run id.
var ErrRunNotFound = errors.New("setup run not found")

// Postgres wraps a postgres DB connection. It is the run ledger.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the necessary tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS setup_runs (
    id TEXT PRIMARY KEY,
    order_name TEXT NOT NULL,
    setup_type TEXT NOT NULL,
    currency TEXT NOT NULL,
    bidder TEXT,
    status TEXT NOT NULL,
    buckets INT NOT NULL DEFAULT 0,
    orders INT NOT NULL DEFAULT 0,
    line_items INT NOT NULL DEFAULT 0,
    creatives INT NOT NULL DEFAULT 0,
    licas INT NOT NULL DEFAULT 0,
    error TEXT,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NULL
);

CREATE TABLE IF NOT EXISTS setup_line_items (
    line_item_id BIGINT PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES setup_runs(id),
    order_id BIGINT NOT NULL,
    name TEXT NOT NULL,
    cpm_micros BIGINT NOT NULL,
    currency TEXT NOT NULL,
    start_range TEXT NOT NULL,
    is_catch_all BOOLEAN NOT NULL DEFAULT FALSE,
    slot TEXT
);

CREATE INDEX IF NOT EXISTS idx_setup_line_items_run_id ON setup_line_items (run_id);
CREATE INDEX IF NOT EXISTS idx_setup_runs_order_name ON setup_runs (order_name);
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	// Register the otelsql wrapper for postgres
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.EnsureSchema(context.Background()); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

// EnsureSchema creates the ledger tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// StartRun inserts the ledger row for a run.
func (p *Postgres) StartRun(ctx context.Context, run *models.SetupRun) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO setup_runs (id, order_name, setup_type, currency, bidder, status, started_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		run.ID, run.OrderName, string(run.SetupType), run.Currency, nullString(run.Bidder), string(run.Status), run.StartedAt)
	if err != nil {
		return fmt.Errorf("insert setup run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final status and counts of a run.
func (p *Postgres) FinishRun(ctx context.Context, run *models.SetupRun) error {
	res, err := p.DB.ExecContext(ctx,
		`UPDATE setup_runs SET setup_type=$2, currency=$3, status=$4, buckets=$5, orders=$6, line_items=$7, creatives=$8, licas=$9, error=$10, finished_at=$11 WHERE id=$1`,
		run.ID, string(run.SetupType), run.Currency, string(run.Status), run.Buckets, run.Orders, run.LineItems, run.Creatives, run.LICAs, nullString(run.Error), run.FinishedAt)
	if err != nil {
		return fmt.Errorf("update setup run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// RecordLineItems inserts the created line items of one batch in a single
// statement.
func (p *Postgres) RecordLineItems(ctx context.Context, items []models.CreatedLineItem) error {
	if len(items) == 0 {
		return nil
	}
	var (
		ids, orders, cpms       []int64
		runs, names, currencies []string
		starts, slots           []string
		catchAll                []bool
	)
	for _, it := range items {
		ids = append(ids, it.LineItemID)
		runs = append(runs, it.RunID)
		orders = append(orders, it.OrderID)
		names = append(names, it.Name)
		cpms = append(cpms, it.CPMMicros)
		currencies = append(currencies, it.Currency)
		starts = append(starts, it.StartRange)
		catchAll = append(catchAll, it.IsCatchAll)
		slots = append(slots, it.Slot)
	}
	_, err := p.DB.ExecContext(ctx, `INSERT INTO setup_line_items
    (line_item_id, run_id, order_id, name, cpm_micros, currency, start_range, is_catch_all, slot)
SELECT * FROM unnest($1::bigint[], $2::text[], $3::bigint[], $4::text[], $5::bigint[], $6::text[], $7::text[], $8::boolean[], $9::text[])
ON CONFLICT (line_item_id) DO NOTHING`,
		pq.Array(ids), pq.Array(runs), pq.Array(orders), pq.Array(names), pq.Array(cpms),
		pq.Array(currencies), pq.Array(starts), pq.Array(catchAll), pq.Array(slots))
	if err != nil {
		return fmt.Errorf("insert setup line items: %w", err)
	}
	return nil
}

// GetRun loads one ledger row.
func (p *Postgres) GetRun(ctx context.Context, id string) (*models.SetupRun, error) {
	var (
		run      models.SetupRun
		st, stat string
		bidder   sql.NullString
		runErr   sql.NullString
		finished sql.NullTime
	)
	err := p.DB.QueryRowContext(ctx,
		`SELECT id, order_name, setup_type, currency, bidder, status, buckets, orders, line_items, creatives, licas, error, started_at, finished_at FROM setup_runs WHERE id=$1`, id).
		Scan(&run.ID, &run.OrderName, &st, &run.Currency, &bidder, &stat, &run.Buckets, &run.Orders, &run.LineItems, &run.Creatives, &run.LICAs, &runErr, &run.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get setup run %s: %w", id, err)
	}
	run.SetupType = models.SetupType(st)
	run.Status = models.RunStatus(stat)
	run.Bidder = bidder.String
	run.Error = runErr.String
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

// ListLineItems returns the line items a run created, in creation order.
func (p *Postgres) ListLineItems(ctx context.Context, runID string) ([]models.CreatedLineItem, error) {
	rows, err := p.DB.QueryContext(ctx,
		`SELECT line_item_id, run_id, order_id, name, cpm_micros, currency, start_range, is_catch_all, slot FROM setup_line_items WHERE run_id=$1 ORDER BY line_item_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query setup line items: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []models.CreatedLineItem
	for rows.Next() {
		var it models.CreatedLineItem
		var slot sql.NullString
		if err := rows.Scan(&it.LineItemID, &it.RunID, &it.OrderID, &it.Name, &it.CPMMicros, &it.Currency, &it.StartRange, &it.IsCatchAll, &slot); err != nil {
			return nil, fmt.Errorf("scan setup line item: %w", err)
		}
		it.Slot = slot.String
		out = append(out, it)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
