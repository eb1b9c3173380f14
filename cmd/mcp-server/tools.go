package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/macros"
	"github.com/patrickwarner/openwrap-setup/internal/models"
	"github.com/patrickwarner/openwrap-setup/internal/observability"
	"github.com/patrickwarner/openwrap-setup/internal/pricing"
	"github.com/patrickwarner/openwrap-setup/internal/setup"
)

// RangeInput is one price range row. Values are decimal strings so no
// precision is lost on the way in.
type RangeInput struct {
	Start       string `json:"start" jsonschema:"range start price, e.g. 0.01"`
	End         string `json:"end" jsonschema:"range end price, inclusive"`
	Granularity string `json:"granularity" jsonschema:"bucket width, or -1 for a single catch-all bucket"`
	RateID      string `json:"rate_id,omitempty" jsonschema:"optional tag carried onto every bucket"`
}

type ExpandBucketsInput struct {
	Ranges         []RangeInput `json:"ranges" jsonschema:"price ranges to expand, in order"`
	Currency       string       `json:"currency,omitempty" jsonschema:"currency of the ranges, defaults to USD"`
	TargetCurrency string       `json:"target_currency,omitempty" jsonschema:"convert ranges into this currency"`
}

type BucketOutput struct {
	StartRange  string `json:"start_range"`
	EndRange    string `json:"end_range,omitempty"`
	Granularity string `json:"granularity"`
	CPMMicros   int64  `json:"cpm_micros"`
	IsCatchAll  bool   `json:"is_catch_all,omitempty"`
	Values      int    `json:"values"`
	FirstValue  string `json:"first_value,omitempty"`
	LastValue   string `json:"last_value,omitempty"`
}

type ExpandBucketsOutput struct {
	Currency string         `json:"currency"`
	Buckets  []BucketOutput `json:"buckets"`
}

type PlanInput struct {
	OrderName      string       `json:"order_name" jsonschema:"order to create line items in"`
	AdvertiserName string       `json:"advertiser_name,omitempty" jsonschema:"advertiser, defaults to PubMatic"`
	SetupType      string       `json:"setup_type" jsonschema:"WEB, WEB_SAFEFRAME, IN_APP, IN_APP_VIDEO, IN_APP_NATIVE, AMP, NATIVE, VIDEO, JWPLAYER or ADPOD"`
	Sizes          string       `json:"sizes,omitempty" jsonschema:"comma separated sizes such as 300x250,728x90"`
	Ranges         []RangeInput `json:"ranges"`
	Bidder         string       `json:"bidder,omitempty" jsonschema:"bidder code, empty targets every bidder"`
	LineItemPrefix string       `json:"line_item_prefix,omitempty"`
	Currency       string       `json:"currency,omitempty"`
	TargetCurrency string       `json:"target_currency,omitempty"`
	NumCreatives   int          `json:"num_creatives,omitempty"`
	TemplateIDs    []int64      `json:"creative_template_ids,omitempty" jsonschema:"native creative template ids"`
	Durations      []int        `json:"durations,omitempty" jsonschema:"ADPOD ad durations in seconds"`
	Slots          []int        `json:"slots,omitempty" jsonschema:"ADPOD slot numbers"`
	VideoPosition  string       `json:"video_position,omitempty" jsonschema:"PREROLL, MIDROLL or POSTROLL"`
}

type PlannedOrder struct {
	Name      string `json:"name"`
	Slot      string `json:"slot,omitempty"`
	LineItems int    `json:"line_items"`
}

type PlanOutput struct {
	Currency  string         `json:"currency"`
	Buckets   int            `json:"buckets"`
	Orders    []PlannedOrder `json:"orders"`
	LineItems []string       `json:"line_items"`
	Creatives []string       `json:"creatives"`
	LICAs     int            `json:"licas"`
}

// SetupServer holds our dependencies
type SetupServer struct {
	names   *macros.Service
	logger  *zap.Logger
	metrics observability.MetricsRegistry
}

func toRanges(in []RangeInput) ([]models.PriceRange, error) {
	out := make([]models.PriceRange, 0, len(in))
	for _, r := range in {
		pr, err := pricing.ParseRange(r.Start, r.End, r.Granularity, r.RateID)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, nil
}

// ExpandBuckets implements the expand_price_buckets tool.
func (s *SetupServer) ExpandBuckets(ctx context.Context, req *mcp.CallToolRequest, input ExpandBucketsInput) (*mcp.CallToolResult, ExpandBucketsOutput, error) {
	ranges, err := toRanges(input.Ranges)
	if err != nil {
		return nil, ExpandBucketsOutput{}, err
	}
	if len(ranges) == 0 {
		return nil, ExpandBucketsOutput{}, pricing.ErrNoRanges
	}
	currency := strings.ToUpper(input.Currency)
	if currency == "" {
		currency = "USD"
	}
	if target := strings.ToUpper(input.TargetCurrency); target != "" && target != currency {
		rate, ok := pricing.ExchangeRate(currency, target)
		if !ok {
			s.logger.Warn("no exchange rate, using 1", zap.String("from", currency), zap.String("to", target))
		}
		ranges = pricing.ConvertRanges(ranges, rate)
		currency = target
	}

	buckets, err := pricing.Expand(ranges)
	if err != nil {
		return nil, ExpandBucketsOutput{}, err
	}
	out := ExpandBucketsOutput{Currency: currency, Buckets: make([]BucketOutput, len(buckets))}
	for i, b := range buckets {
		bo := BucketOutput{
			StartRange:  b.StartRange,
			EndRange:    b.EndRange,
			Granularity: b.Granularity,
			CPMMicros:   b.CPMMicros(),
			IsCatchAll:  b.IsCatchAll,
			Values:      len(b.PwtecpValues),
		}
		if n := len(b.PwtecpValues); n > 0 {
			bo.FirstValue = b.PwtecpValues[0]
			bo.LastValue = b.PwtecpValues[n-1]
		}
		out.Buckets[i] = bo
	}
	return nil, out, nil
}

// PlanLineItems implements the plan_line_items tool. It never talks to the
// ad server.
func (s *SetupServer) PlanLineItems(ctx context.Context, req *mcp.CallToolRequest, input PlanInput) (*mcp.CallToolResult, PlanOutput, error) {
	ranges, err := toRanges(input.Ranges)
	if err != nil {
		return nil, PlanOutput{}, err
	}
	sizes, err := models.ParseSizes(input.Sizes)
	if err != nil {
		return nil, PlanOutput{}, err
	}
	advertiser := input.AdvertiserName
	if advertiser == "" {
		advertiser = "PubMatic"
	}
	target := strings.ToUpper(input.TargetCurrency)
	r := setup.Request{
		OrderName:      input.OrderName,
		AdvertiserName: advertiser,
		// the planning server only knows this user
		TraffickerEmail: "planner@localhost",
		SetupType:       models.SetupType(input.SetupType),
		Sizes:           sizes,
		Ranges:          ranges,
		Currency:        input.Currency,
		ExchangeRate:    target != "",
		TargetCurrency:  target,
		Bidder:          input.Bidder,
		LineItemPrefix:  input.LineItemPrefix,
		NumCreatives:    input.NumCreatives,
		TemplateIDs:     input.TemplateIDs,
		Durations:       input.Durations,
		Slots:           input.Slots,
		VideoPosition:   models.VideoPosition(strings.ToUpper(input.VideoPosition)),
	}

	res, err := setup.Plan(ctx, r, s.names, s.logger, s.metrics)
	if err != nil {
		return nil, PlanOutput{}, fmt.Errorf("plan: %w", err)
	}
	out := PlanOutput{
		Currency:  res.Currency,
		Buckets:   len(res.Buckets),
		Orders:    make([]PlannedOrder, 0, len(res.Orders)),
		LineItems: make([]string, 0, len(res.LineItems)),
		Creatives: make([]string, 0, len(res.Creatives)),
		LICAs:     res.LICAs,
	}
	for _, o := range res.Orders {
		out.Orders = append(out.Orders, PlannedOrder{Name: o.Name, Slot: o.Slot, LineItems: len(o.LineItemIDs)})
	}
	for _, li := range res.LineItems {
		out.LineItems = append(out.LineItems, li.Name)
	}
	for _, c := range res.Creatives {
		out.Creatives = append(out.Creatives, c.Name)
	}
	return nil, out, nil
}

// newMCPServer registers the planning tools.
func newMCPServer(s *SetupServer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "owsetup",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "expand_price_buckets",
		Description: "Expand OpenWrap price ranges into line item price buckets",
	}, s.ExpandBuckets)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "plan_line_items",
		Description: "Dry-run a line item setup and list the orders, line items and creatives it would create",
	}, s.PlanLineItems)

	return server
}
