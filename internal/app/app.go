// Package app wires configuration into a setup runner and its optional
// bookkeeping stores.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/analytics"
	"github.com/patrickwarner/openwrap-setup/internal/api"
	"github.com/patrickwarner/openwrap-setup/internal/config"
	"github.com/patrickwarner/openwrap-setup/internal/db"
	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/macros"
	"github.com/patrickwarner/openwrap-setup/internal/observability"
	"github.com/patrickwarner/openwrap-setup/internal/setup"
)

// App is a configured runner plus the connections it owns.
type App struct {
	Runner *setup.Runner
	Server gam.Server
	Names  *macros.Service

	// Nil when the matching DSN or address is not configured.
	Ledger *db.Postgres
	Lock   *db.RedisStore
	Audit  *analytics.Analytics

	closers []func()
}

// New connects every configured store and builds the runner. server may be
// nil, in which case a SOAP client is built from cfg.
func New(ctx context.Context, cfg config.Config, server gam.Server, names *macros.Service, logger *zap.Logger, metrics observability.MetricsRegistry) (*App, error) {
	a := &App{Server: server, Names: names}
	if a.Server == nil {
		a.Server = gam.NewClient(cfg.GAMClientConfig(), logger.Named("gam"), metrics)
	}

	opts := []setup.Option{
		setup.WithCacheSize(cfg.TargetingCacheSize),
		setup.WithOrderLimit(cfg.OrderLimit),
	}

	if cfg.PostgresDSN != "" {
		pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.Ledger = pg
		a.closers = append(a.closers, pg.Close)
		opts = append(opts, setup.WithLedger(pg))
	} else {
		logger.Warn("POSTGRES_DSN not set, runs will not be recorded")
	}

	if cfg.RedisAddr != "" {
		store, err := db.InitRedis(ctx, cfg.RedisAddr)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		store.TTL = cfg.LockTTL
		store.Wait = cfg.LockWait
		a.Lock = store
		a.closers = append(a.closers, store.Close)
		opts = append(opts, setup.WithLocker(store))
	} else {
		logger.Warn("REDIS_ADDR not set, targeting creation is not locked across processes")
	}

	if cfg.ClickHouseDSN != "" {
		ch, err := analytics.InitClickHouse(ctx, cfg.ClickHouseDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		a.Audit = ch
		a.closers = append(a.closers, ch.Close)
		opts = append(opts, setup.WithAuditor(ch))
	}

	if cfg.DryRun {
		opts = append(opts, setup.WithDryRun())
	}
	a.Runner = setup.NewRunner(a.Server, names, logger, metrics, opts...)
	return a, nil
}

// RunStore returns the ledger, or nil when none is configured.
func (a *App) RunStore() api.RunStore {
	if a.Ledger == nil {
		return nil
	}
	return a.Ledger
}

// AuditService returns the audit store, or nil when none is configured.
func (a *App) AuditService() analytics.AuditService {
	if a.Audit == nil {
		return nil
	}
	return a.Audit
}

// Reporter returns the setup activity reporter, or nil when no audit store
// is configured.
func (a *App) Reporter() api.Reporter {
	if a.Audit == nil {
		return nil
	}
	return a.Audit
}

// Close releases connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
