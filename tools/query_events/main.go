package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/analytics"
	"github.com/patrickwarner/openwrap-setup/internal/config"
	"github.com/patrickwarner/openwrap-setup/internal/observability"
)

func main() {
	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var id string
	var dsn string
	var timeout time.Duration
	var report bool
	var days int
	flag.StringVar(&id, "run", "", "setup run ID")
	flag.BoolVar(&report, "report", false, "print a setup activity report instead of one run's events")
	flag.IntVar(&days, "days", 7, "report window in days")
	flag.StringVar(&dsn, "dsn", "", "ClickHouse DSN")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "query timeout")
	flag.Parse()

	if id == "" && !report {
		fmt.Fprintln(os.Stderr, "run or -report required")
		os.Exit(1)
	}
	if dsn == "" {
		dsn = config.Load().ClickHouseDSN
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "CLICKHOUSE_DSN or -dsn required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := analytics.InitClickHouse(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	var out any
	if report {
		out, err = a.SetupReport(ctx, days, 10)
	} else {
		out, err = a.EventsByRun(ctx, id)
	}
	if err != nil {
		logger.Error("query failed", zap.String("run", id), zap.Bool("report", report), zap.Error(err))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
}
