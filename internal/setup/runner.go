// Package setup runs an OpenWrap line item setup end to end: price ranges
// are expanded into buckets, each bucket gets a targeting tree and a line
// item, and creatives are created and associated with every line item.
package setup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/creative"
	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/lineitem"
	"github.com/patrickwarner/openwrap-setup/internal/macros"
	"github.com/patrickwarner/openwrap-setup/internal/models"
	"github.com/patrickwarner/openwrap-setup/internal/observability"
	"github.com/patrickwarner/openwrap-setup/internal/pricing"
	"github.com/patrickwarner/openwrap-setup/internal/targeting"
)

var tracer = observability.Tracer("setup")

// Ledger persists run bookkeeping.
type Ledger interface {
	StartRun(ctx context.Context, run *models.SetupRun) error
	RecordLineItems(ctx context.Context, items []models.CreatedLineItem) error
	FinishRun(ctx context.Context, run *models.SetupRun) error
}

// Auditor stores the objects a run touched.
type Auditor interface {
	RecordSetupEvents(ctx context.Context, events []models.SetupEvent) error
}

// Runner executes setup runs against one ad server.
type Runner struct {
	server   gam.Server
	creative *creative.Builder
	logger   *zap.Logger
	metrics  observability.MetricsRegistry

	locker     targeting.Locker
	ledger     Ledger
	auditor    Auditor
	cacheSize  int
	orderLimit int
	dryRun     bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLocker serializes targeting get-or-create across processes.
func WithLocker(l targeting.Locker) Option { return func(r *Runner) { r.locker = l } }

// WithLedger records runs and created line items.
func WithLedger(l Ledger) Option { return func(r *Runner) { r.ledger = l } }

// WithAuditor records every created object.
func WithAuditor(a Auditor) Option { return func(r *Runner) { r.auditor = a } }

// WithCacheSize bounds the targeting value cache.
func WithCacheSize(n int) Option { return func(r *Runner) { r.cacheSize = n } }

// WithOrderLimit caps line items per order.
func WithOrderLimit(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.orderLimit = n
		}
	}
}

// WithDryRun marks runs as planned rather than executed.
func WithDryRun() Option { return func(r *Runner) { r.dryRun = true } }

// NewRunner returns a Runner creating objects on server.
func NewRunner(server gam.Server, names *macros.Service, logger *zap.Logger, metrics observability.MetricsRegistry, opts ...Option) *Runner {
	r := &Runner{
		server:     server,
		creative:   creative.NewBuilder(names),
		logger:     logger,
		metrics:    metrics,
		cacheSize:  targeting.DefaultCacheSize,
		orderLimit: DefaultOrderLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OrderSummary lists the line items placed in one order.
type OrderSummary struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Slot        string  `json:"slot,omitempty"`
	LineItemIDs []int64 `json:"line_item_ids"`
}

// Result describes what a run created.
type Result struct {
	RunID     string               `json:"run_id"`
	Status    models.RunStatus     `json:"status"`
	Currency  string               `json:"currency"`
	Buckets   []models.PriceBucket `json:"buckets"`
	Orders    []OrderSummary       `json:"orders"`
	LineItems []gam.LineItem       `json:"line_items"`
	Creatives []gam.Creative       `json:"creatives"`
	LICAs     int                  `json:"licas"`
}

// runState is the mutable state of one run.
type runState struct {
	runID  string
	req    Request
	logger *zap.Logger

	advertiser   *gam.Company
	traffickerID int64
	placementIDs []int64
	adUnitIDs    []string

	buckets []models.PriceBucket
	trees   []models.TargetingTree
	gen     *targeting.Generator

	result *Result
	events []models.SetupEvent
}

// Run executes req. Any failure stops the run; objects created before the
// failure stay on the ad server and are listed in the ledger.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	ctx, span := tracer.Start(ctx, "setup.Run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("order.name", req.OrderName),
			attribute.String("setup.type", string(req.SetupType)),
			attribute.Bool("dry_run", r.dryRun),
		))
	defer span.End()

	st := &runState{
		runID:  runID,
		req:    req,
		logger: observability.RunLogger(r.logger, runID, req.OrderName),
		result: &Result{RunID: runID},
	}
	run := &models.SetupRun{
		ID:        runID,
		OrderName: req.OrderName,
		SetupType: req.SetupType,
		Currency:  req.Currency,
		Bidder:    req.Bidder,
		Status:    models.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	r.persist(st, "ledger", func() error { return r.startRun(ctx, run) })

	err := r.execute(ctx, st)

	run.SetupType = st.req.SetupType
	run.Currency = st.result.Currency
	run.Buckets = len(st.result.Buckets)
	run.Orders = len(st.result.Orders)
	run.LineItems = len(st.result.LineItems)
	run.Creatives = len(st.result.Creatives)
	run.LICAs = st.result.LICAs
	run.FinishedAt = time.Now().UTC()
	switch {
	case err != nil:
		run.Status = models.RunFailed
		run.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "setup failed")
	case r.dryRun:
		run.Status = models.RunPlanned
	default:
		run.Status = models.RunSucceeded
	}
	st.result.Status = run.Status
	r.metrics.IncrementSetupRuns(string(run.Status))

	r.persist(st, "ledger", func() error { return r.finishRun(ctx, run) })
	if r.auditor != nil && len(st.events) > 0 {
		r.persist(st, "audit", func() error { return r.auditor.RecordSetupEvents(ctx, st.events) })
	}

	if err != nil {
		st.logger.Error("setup run failed", zap.Error(err))
		return st.result, err
	}
	st.logger.Info("setup run finished",
		zap.String("status", string(run.Status)),
		zap.Int("buckets", run.Buckets),
		zap.Int("orders", run.Orders),
		zap.Int("line_items", run.LineItems),
		zap.Int("creatives", run.Creatives),
		zap.Int("licas", run.LICAs))
	return st.result, nil
}

func (r *Runner) execute(ctx context.Context, st *runState) error {
	if err := st.req.normalize(); err != nil {
		return err
	}
	req := &st.req
	st.result.Currency = req.lineItemCurrency()

	if err := r.expand(ctx, st); err != nil {
		return err
	}

	resolverOpts := []targeting.Option{}
	if r.locker != nil {
		resolverOpts = append(resolverOpts, targeting.WithLocker(r.locker))
	}
	resolver, err := targeting.NewResolver(r.server, r.cacheSize, st.logger, r.metrics, resolverOpts...)
	if err != nil {
		return err
	}
	st.gen = targeting.NewGenerator(resolver)

	tctx, span := tracer.Start(ctx, "setup.Targeting")
	st.trees, err = st.gen.Generate(tctx, st.buckets, req.SetupType.Platform(), req.Bidder)
	span.End()
	if err != nil {
		return fmt.Errorf("generate targeting: %w", err)
	}

	if err := r.inventory(ctx, st); err != nil {
		return err
	}
	if err := r.advertiser(ctx, st); err != nil {
		return err
	}

	if req.SetupType.Family() != models.FamilyAdPod {
		return r.family(ctx, st, "", nil)
	}
	for _, n := range req.Slots {
		slot := SlotName(n)
		durations, err := st.gen.DurationTargeting(ctx, slot, req.Durations)
		if err != nil {
			return fmt.Errorf("duration targeting for %s: %w", slot, err)
		}
		if err := r.family(ctx, st, slot, durations); err != nil {
			return err
		}
	}
	return nil
}

// expand converts currency when requested and expands ranges to buckets.
func (r *Runner) expand(ctx context.Context, st *runState) error {
	_, span := tracer.Start(ctx, "setup.Expand")
	defer span.End()

	req := &st.req
	ranges := req.Ranges
	if req.ExchangeRate && req.TargetCurrency != req.Currency {
		rate, ok := pricing.ExchangeRate(req.Currency, req.TargetCurrency)
		if !ok {
			st.logger.Warn("no exchange rate for currency pair, using 1",
				zap.String("from", req.Currency), zap.String("to", req.TargetCurrency))
		}
		ranges = pricing.ConvertRanges(ranges, rate)
		st.logger.Info("converted price ranges",
			zap.String("from", req.Currency), zap.String("to", req.TargetCurrency),
			zap.String("rate", rate.String()))
	}

	buckets, err := pricing.Expand(ranges)
	if err != nil {
		return err
	}
	if len(buckets) == 0 {
		return pricing.ErrNoRanges
	}
	st.buckets = buckets
	st.result.Buckets = buckets
	r.metrics.RecordBucketsPerRun(len(buckets))
	span.SetAttributes(attribute.Int("buckets", len(buckets)))
	return nil
}

// family creates the orders, line items, creatives and associations for
// one order family. slot is empty except for ADPOD.
func (r *Runner) family(ctx context.Context, st *runState, slot string, durations map[int]models.TargetingTree) error {
	ctx, span := tracer.Start(ctx, "setup.Family", trace.WithAttributes(attribute.String("slot", slot)))
	defer span.End()

	req := &st.req
	allocs, err := r.allocate(ctx, st, slot, len(st.buckets))
	if err != nil {
		return err
	}

	creatives, err := r.creatives(ctx, st, slot)
	if err != nil {
		return err
	}
	creativeIDs := make([]int64, 0, len(creatives))
	for _, c := range creatives {
		creativeIDs = append(creativeIDs, c.ID)
	}

	for _, a := range allocs {
		items, err := r.lineItems(ctx, st, a, slot, durations)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(items))
		for _, li := range items {
			ids = append(ids, li.ID)
		}
		st.result.Orders = append(st.result.Orders, OrderSummary{ID: a.Order.ID, Name: a.Order.Name, Slot: slot, LineItemIDs: ids})

		licas, err := creative.Associations(req.SetupType, ids, creativeIDs, req.associationSizes(), slot, req.Durations)
		if err != nil {
			return err
		}
		created, err := r.server.CreateLICAs(ctx, licas)
		if err != nil {
			return fmt.Errorf("associate creatives with order %s: %w", a.Order.Name, err)
		}
		st.result.LICAs += len(created)
		r.metrics.AddObjectsCreated(models.EventLICA, len(created))
		for _, l := range created {
			id := l.CreativeID
			if id == 0 {
				id = l.CreativeSetID
			}
			st.event(models.EventLICA, id, l.LineItemID, l.TargetingName)
		}
		st.logger.Info("created line item creative associations",
			zap.String("order_name", a.Order.Name), zap.Int("licas", len(created)))
	}
	return nil
}

func (r *Runner) lineItems(ctx context.Context, st *runState, a allocation, slot string, durations map[int]models.TargetingTree) ([]gam.LineItem, error) {
	req := &st.req
	wire := make([]gam.LineItem, 0, a.To-a.From)
	for i := a.From; i < a.To; i++ {
		b := st.buckets[i]
		cfg, err := lineitem.Build(lineitem.Params{
			Name:                    lineitem.Name(req.LineItemPrefix, b),
			OrderID:                 a.Order.ID,
			PlacementIDs:            st.placementIDs,
			AdUnitIDs:               st.adUnitIDs,
			CPMMicros:               b.CPMMicros(),
			Sizes:                   req.Sizes,
			LineItemType:            req.LineItemType,
			CurrencyCode:            req.lineItemCurrency(),
			SetupType:               req.SetupType,
			Targeting:               st.trees[i],
			CreativeTemplateIDs:     req.TemplateIDs,
			Durations:               req.Durations,
			Slot:                    slot,
			DurationTargeting:       durations,
			VideoPosition:           req.VideoPosition,
			DeviceCategories:        req.DeviceCategories,
			DeviceCapabilities:      req.DeviceCapabilities,
			RoadblockType:           req.RoadblockType,
			SameAdvertiserException: req.SameAdvertiserException,
		})
		if err != nil {
			return nil, fmt.Errorf("line item for bucket %s: %w", b.StartRange, err)
		}
		wire = append(wire, cfg.ToWire())
	}

	created, err := r.server.CreateLineItems(ctx, wire)
	if err != nil {
		return nil, fmt.Errorf("create line items in order %s: %w", a.Order.Name, err)
	}
	if len(created) != len(wire) {
		return nil, &gam.RemoteError{
			Service: gam.ServiceLineItem,
			Method:  "createLineItems",
			Err:     fmt.Errorf("sent %d line items, got %d back", len(wire), len(created)),
		}
	}
	r.metrics.AddObjectsCreated(models.EventLineItem, len(created))
	st.result.LineItems = append(st.result.LineItems, created...)

	records := make([]models.CreatedLineItem, 0, len(created))
	for j, li := range created {
		b := st.buckets[a.From+j]
		st.event(models.EventLineItem, li.ID, a.Order.ID, li.Name)
		records = append(records, models.CreatedLineItem{
			RunID:      st.runID,
			LineItemID: li.ID,
			OrderID:    a.Order.ID,
			Name:       li.Name,
			CPMMicros:  li.CostPerUnit.MicroAmount,
			Currency:   li.CostPerUnit.CurrencyCode,
			StartRange: b.StartRange,
			IsCatchAll: b.IsCatchAll,
			Slot:       slot,
		})
	}
	if r.ledger != nil {
		r.persist(st, "ledger", func() error { return r.ledger.RecordLineItems(ctx, records) })
	}
	st.logger.Info("created line items",
		zap.String("order_name", a.Order.Name), zap.Int("line_items", len(created)))
	return created, nil
}

func (r *Runner) creatives(ctx context.Context, st *runState, slot string) ([]gam.Creative, error) {
	req := &st.req
	configs, err := r.creative.Build(creative.Params{
		SetupType:      req.SetupType,
		AdvertiserID:   st.advertiser.ID,
		Order:          req.OrderName,
		Bidder:         req.Bidder,
		Prefix:         req.LineItemPrefix,
		Sizes:          req.Sizes,
		NumCreatives:   req.NumCreatives,
		Use1x1:         req.Use1x1,
		TemplateIDs:    req.TemplateIDs,
		UserDefinedVar: req.UserDefinedVar,
		Durations:      req.Durations,
		Slot:           slot,
		CacheURL:       req.CacheURL,
		UniqueID:       shortID(st.runID),
	})
	if err != nil {
		return nil, err
	}
	created, err := r.server.CreateCreatives(ctx, configs)
	if err != nil {
		return nil, fmt.Errorf("create creatives: %w", err)
	}
	r.metrics.AddObjectsCreated(models.EventCreative, len(created))
	st.result.Creatives = append(st.result.Creatives, created...)
	for _, c := range created {
		st.event(models.EventCreative, c.ID, c.AdvertiserID, c.Name)
	}
	st.logger.Info("created creatives", zap.String("slot", slot), zap.Int("creatives", len(created)))
	return created, nil
}

func (r *Runner) startRun(ctx context.Context, run *models.SetupRun) error {
	if r.ledger == nil {
		return nil
	}
	return r.ledger.StartRun(ctx, run)
}

func (r *Runner) finishRun(ctx context.Context, run *models.SetupRun) error {
	if r.ledger == nil {
		return nil
	}
	return r.ledger.FinishRun(ctx, run)
}

// persist runs a bookkeeping write. The ad server is the system of record,
// so failures are logged and counted but never fail the run.
func (r *Runner) persist(st *runState, sink string, fn func() error) {
	if err := fn(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.metrics.IncrementPersistErrors(sink)
		st.logger.Warn("bookkeeping write failed", zap.String("sink", sink), zap.Error(err))
	}
}

// shortID keeps creative names short while staying unique per run.
func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
