package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/macros"
	"github.com/patrickwarner/openwrap-setup/internal/observability"
	"github.com/patrickwarner/openwrap-setup/internal/pricing"
)

func newTestSetupServer() *SetupServer {
	logger := zap.NewNop()
	return &SetupServer{
		names:   macros.NewServiceForTesting(logger),
		logger:  logger,
		metrics: observability.NewNoOpRegistry(),
	}
}

func TestExpandBuckets(t *testing.T) {
	s := newTestSetupServer()
	_, out, err := s.ExpandBuckets(context.Background(), nil, ExpandBucketsInput{
		Ranges: []RangeInput{
			{Start: "0.01", End: "0.10", Granularity: "0.05"},
			{Start: "10", End: "12.50", Granularity: "-1"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", out.Currency)
	require.Len(t, out.Buckets, 3)
	assert.Equal(t, "0.01", out.Buckets[0].FirstValue)
	assert.Equal(t, "0.05", out.Buckets[0].LastValue)
	assert.Equal(t, int64(10_000), out.Buckets[0].CPMMicros)

	catchAll := out.Buckets[2]
	assert.True(t, catchAll.IsCatchAll)
	assert.Equal(t, "10.", catchAll.FirstValue)
	assert.Equal(t, "12.", catchAll.LastValue)
}

func TestExpandBuckets_Errors(t *testing.T) {
	s := newTestSetupServer()
	_, _, err := s.ExpandBuckets(context.Background(), nil, ExpandBucketsInput{})
	assert.True(t, errors.Is(err, pricing.ErrNoRanges))

	_, _, err = s.ExpandBuckets(context.Background(), nil, ExpandBucketsInput{
		Ranges: []RangeInput{{Start: "abc", End: "1", Granularity: "0.01"}},
	})
	assert.Error(t, err)
}

func TestPlanLineItems(t *testing.T) {
	s := newTestSetupServer()
	_, out, err := s.PlanLineItems(context.Background(), nil, PlanInput{
		OrderName: "OW_HB",
		SetupType: "web",
		Sizes:     "300x250",
		Bidder:    "pubmatic",
		Ranges:    []RangeInput{{Start: "1.00", End: "1.20", Granularity: "0.10"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Buckets)
	require.Len(t, out.Orders, 1)
	assert.Equal(t, "OW_HB", out.Orders[0].Name)
	assert.Equal(t, 3, out.Orders[0].LineItems)
	assert.Equal(t, "Top Bid: HB $1.00", out.LineItems[0])
	assert.Len(t, out.Creatives, 1)
	assert.Equal(t, 3, out.LICAs)
}

func TestPlanLineItems_InvalidSetupType(t *testing.T) {
	s := newTestSetupServer()
	_, _, err := s.PlanLineItems(context.Background(), nil, PlanInput{
		OrderName: "OW_HB",
		SetupType: "BANNER",
		Sizes:     "300x250",
		Ranges:    []RangeInput{{Start: "1", End: "2", Granularity: "1"}},
	})
	assert.Error(t, err)
}

func TestNewMCPServer(t *testing.T) {
	assert.NotNil(t, newMCPServer(newTestSetupServer()))
}
