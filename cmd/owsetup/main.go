// Command owsetup creates OpenWrap header bidding line items on the ad server.
//
//	owsetup plan   [flags]   show what a run would create
//	owsetup run    [flags]   create orders, line items and creatives
//	owsetup buckets -ranges file.csv
//	owsetup update-video-position -order NAME -like PATTERN -position PREROLL
//
// Flags override OWSETUP_* environment variables and .env.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/app"
	"github.com/patrickwarner/openwrap-setup/internal/config"
	"github.com/patrickwarner/openwrap-setup/internal/macros"
	"github.com/patrickwarner/openwrap-setup/internal/models"
	"github.com/patrickwarner/openwrap-setup/internal/observability"
	"github.com/patrickwarner/openwrap-setup/internal/pricing"
	"github.com/patrickwarner/openwrap-setup/internal/setup"
)

// errUsage is returned for a missing or unknown subcommand.
var errUsage = errors.New("usage: owsetup <plan|run|buckets|update-video-position> [flags]")

// newNames builds the creative name service; tests swap in a private registry.
var newNames = func(logger *zap.Logger, cfg config.Config) *macros.Service {
	return macros.NewService(logger, cfg.NameTemplates())
}

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], cfg, logger, os.Stdout); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, errUsage)
			os.Exit(2)
		}
		logger.Error("owsetup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, cfg config.Config, logger *zap.Logger, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "plan", "run":
		req, err := parseSetupFlags(cmd, args)
		if err != nil {
			return err
		}
		return runSetup(ctx, cmd == "plan", req, cfg, logger, out)
	case "buckets":
		return runBuckets(args, out)
	case "update-video-position":
		return runVideoPosition(ctx, args, cfg, logger, out)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func parseSetupFlags(name string, args []string) (setup.Request, error) {
	s := config.LoadSettings()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&s.OrderName, "order", s.OrderName, "order name")
	fs.StringVar(&s.AdvertiserName, "advertiser", s.AdvertiserName, "advertiser name")
	fs.StringVar(&s.TraffickerEmail, "trafficker", s.TraffickerEmail, "trafficker email")
	fs.StringVar(&s.LineItemType, "line-item-type", s.LineItemType, "line item type")
	fs.StringVar(&s.LineItemPrefix, "prefix", s.LineItemPrefix, "line item name prefix")
	fs.StringVar(&s.SetupType, "setup-type", s.SetupType, "setup type")
	fs.StringVar(&s.Sizes, "sizes", s.Sizes, "comma separated sizes, e.g. 300x250,728x90")
	fs.StringVar(&s.RangesFile, "ranges", s.RangesFile, "price range file (.csv or .xlsx)")
	fs.StringVar(&s.Currency, "currency", s.Currency, "currency of the ranges")
	fs.BoolVar(&s.ExchangeRate, "exchange", s.ExchangeRate, "convert ranges into -target-currency")
	fs.StringVar(&s.TargetCurrency, "target-currency", s.TargetCurrency, "line item currency when -exchange is set")
	fs.StringVar(&s.Bidder, "bidder", s.Bidder, "bidder code")
	fs.IntVar(&s.NumCreatives, "num-creatives", s.NumCreatives, "creatives per size")
	fs.BoolVar(&s.Use1x1, "use-1x1", s.Use1x1, "create 1x1 creatives with size overrides")
	fs.StringVar(&s.UserDefinedVar, "native-title", s.UserDefinedVar, "native template Title variable")
	fs.StringVar(&s.VideoPosition, "video-position", s.VideoPosition, "PREROLL, MIDROLL or POSTROLL")
	fs.StringVar(&s.CacheURL, "cache-url", s.CacheURL, "ADPOD cache base URL")
	fs.StringVar(&s.RoadblockType, "roadblock", s.RoadblockType, "roadblocking type")
	fs.BoolVar(&s.SameAdvertiserException, "same-advertiser-exception", s.SameAdvertiserException, "allow same advertiser competition")
	fs.Func("placements", "comma separated placement names", func(v string) error {
		s.PlacementNames = splitList(v)
		return nil
	})
	fs.Func("templates", "comma separated native creative template ids", func(v string) (err error) {
		s.TemplateIDs, err = parseInts[int64](v)
		return err
	})
	fs.Func("durations", "comma separated ADPOD durations in seconds", func(v string) (err error) {
		s.Durations, err = parseInts[int](v)
		return err
	})
	fs.Func("slots", "comma separated ADPOD slot numbers", func(v string) (err error) {
		s.Slots, err = parseInts[int](v)
		return err
	})
	if err := fs.Parse(args); err != nil {
		return setup.Request{}, err
	}
	return s.Request()
}

func runSetup(ctx context.Context, plan bool, req setup.Request, cfg config.Config, logger *zap.Logger, out io.Writer) error {
	names := newNames(logger, cfg)
	if err := names.Check(); err != nil {
		return err
	}
	metrics := observability.NewPrometheusRegistry()

	var (
		res *setup.Result
		err error
	)
	if plan {
		res, err = setup.Plan(ctx, req, names, logger, metrics)
	} else {
		if cfg.TracingEnabled {
			shutdown, terr := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.Environment, cfg.TempoEndpoint, cfg.TracingSampleRate)
			if terr != nil {
				logger.Warn("tracing disabled", zap.Error(terr))
			} else {
				defer shutdown()
			}
		}
		var a *app.App
		a, err = app.New(ctx, cfg, nil, names, logger, metrics)
		if err != nil {
			return err
		}
		defer a.Close()
		res, err = a.Runner.Run(ctx, req)
	}
	if res != nil {
		printSummary(out, res)
	}
	return err
}

func printSummary(out io.Writer, res *setup.Result) {
	fmt.Fprintf(out, "run %s: %s\n", res.RunID, res.Status)
	fmt.Fprintf(out, "currency: %s  buckets: %d  line items: %d  creatives: %d  associations: %d\n",
		res.Currency, len(res.Buckets), len(res.LineItems), len(res.Creatives), res.LICAs)
	for _, o := range res.Orders {
		fmt.Fprintf(out, "order %q: %d line items\n", o.Name, len(o.LineItemIDs))
	}
	for _, li := range res.LineItems {
		fmt.Fprintf(out, "  %s\n", li.Name)
	}
}

func runBuckets(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("buckets", flag.ContinueOnError)
	path := fs.String("ranges", "LineItem.csv", "price range file (.csv or .xlsx)")
	asJSON := fs.Bool("json", false, "print buckets as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ranges, err := pricing.LoadRanges(*path)
	if err != nil {
		return err
	}
	buckets, err := pricing.Expand(ranges)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(buckets)
	}
	for _, b := range buckets {
		fmt.Fprintf(out, "%s\t%s\t%d values\n", b.StartRange, b.Granularity, len(b.PwtecpValues))
	}
	return nil
}

func runVideoPosition(ctx context.Context, args []string, cfg config.Config, logger *zap.Logger, out io.Writer) error {
	fs := flag.NewFlagSet("update-video-position", flag.ContinueOnError)
	order := fs.String("order", "", "order name")
	like := fs.String("like", "%", "line item name LIKE pattern")
	lit := fs.String("line-item-type", string(models.LineItemPricePriority), "line item type")
	position := fs.String("position", "", "PREROLL, MIDROLL or POSTROLL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pos, err := models.ParseVideoPosition(*position)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, nil, newNames(logger, cfg), logger, observability.NewPrometheusRegistry())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Runner.UpdateVideoPositions(ctx, setup.PositionRequest{
		OrderName:    *order,
		NameLike:     *like,
		LineItemType: models.LineItemType(strings.ToUpper(*lit)),
		Position:     pos,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "updated %d line items, skipped %d\n", len(res.Updated), len(res.Skipped))
	for id, why := range res.Skipped {
		fmt.Fprintf(out, "  skipped %d: %s\n", id, why)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInts[T int | int64](v string) ([]T, error) {
	var out []T
	for _, p := range splitList(v) {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", p, err)
		}
		out = append(out, T(n))
	}
	return out, nil
}
