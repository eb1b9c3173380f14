package setup

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/macros"
	"github.com/patrickwarner/openwrap-setup/internal/models"
	"github.com/patrickwarner/openwrap-setup/internal/observability"
	"github.com/patrickwarner/openwrap-setup/internal/pricing"
)

type fakeLedger struct {
	started  []*models.SetupRun
	finished []*models.SetupRun
	items    []models.CreatedLineItem
	err      error
}

func (l *fakeLedger) StartRun(_ context.Context, run *models.SetupRun) error {
	l.started = append(l.started, run)
	return l.err
}

func (l *fakeLedger) RecordLineItems(_ context.Context, items []models.CreatedLineItem) error {
	l.items = append(l.items, items...)
	return l.err
}

func (l *fakeLedger) FinishRun(_ context.Context, run *models.SetupRun) error {
	l.finished = append(l.finished, run)
	return l.err
}

type fakeAuditor struct {
	events []models.SetupEvent
}

func (a *fakeAuditor) RecordSetupEvents(_ context.Context, events []models.SetupEvent) error {
	a.events = append(a.events, events...)
	return nil
}

func mustRanges(t *testing.T, rows ...[3]string) []models.PriceRange {
	t.Helper()
	var out []models.PriceRange
	for _, r := range rows {
		pr, err := pricing.ParseRange(r[0], r[1], r[2], "")
		require.NoError(t, err)
		out = append(out, pr)
	}
	return out
}

func newTestRunner(t *testing.T, mem *gam.Memory, opts ...Option) (*Runner, *observability.MockMetricsRegistry) {
	t.Helper()
	metrics := observability.NewMockMetricsRegistry()
	names := macros.NewServiceForTesting(zaptest.NewLogger(t))
	return NewRunner(mem, names, zap.NewNop(), metrics, opts...), metrics
}

func displayRequest(t *testing.T) Request {
	return Request{
		RunID:           "run-0001-display",
		OrderName:       "OW_HB",
		AdvertiserName:  "PubMatic",
		TraffickerEmail: "ops@example.com",
		SetupType:       models.SetupWeb,
		Sizes:           []models.Size{{Width: 300, Height: 250}, {Width: 728, Height: 90}},
		Ranges:          mustRanges(t, [3]string{"0.01", "0.03", "0.01"}, [3]string{"20", "22", "-1"}),
		Bidder:          "pubmatic",
		NumCreatives:    2,
	}
}

func TestRun_Display(t *testing.T) {
	mem := gam.NewMemory("root-1")
	mem.AddUser("ops", "ops@example.com")
	ledger := &fakeLedger{}
	auditor := &fakeAuditor{}
	runner, metrics := newTestRunner(t, mem, WithLedger(ledger), WithAuditor(auditor))

	res, err := runner.Run(context.Background(), displayRequest(t))
	require.NoError(t, err)

	assert.Equal(t, models.RunSucceeded, res.Status)
	assert.Equal(t, "USD", res.Currency)
	require.Len(t, res.Buckets, 4)
	require.Len(t, res.LineItems, 4)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, "OW_HB", res.Orders[0].Name)

	first := res.LineItems[0]
	assert.Equal(t, "Top Bid: HB $0.01", first.Name)
	assert.Equal(t, int64(10_000), first.CostPerUnit.MicroAmount)
	require.NotNil(t, first.Targeting.CustomTargeting)
	assert.Len(t, first.Targeting.CustomTargeting.Children, 4)
	require.NotNil(t, first.Targeting.InventoryTargeting)
	assert.Equal(t, "root-1", first.Targeting.InventoryTargeting.TargetedAdUnits[0].AdUnitID)

	last := res.LineItems[3]
	assert.Equal(t, "Top Bid: HB $20.00+ (Catch-all 20.00-22.00)", last.Name)

	// 2 sizes x 2 creatives, each associated with every line item
	assert.Len(t, res.Creatives, 4)
	assert.Equal(t, 16, res.LICAs)
	assert.Len(t, mem.LICAs, 16)
	assert.NotZero(t, mem.LICAs[0].CreativeID)

	require.Len(t, ledger.started, 1)
	require.Len(t, ledger.finished, 1)
	assert.Equal(t, models.RunSucceeded, ledger.finished[0].Status)
	assert.Equal(t, 4, ledger.finished[0].LineItems)
	assert.Len(t, ledger.items, 4)
	assert.True(t, ledger.items[3].IsCatchAll)

	// 1 order + 4 line items + 4 creatives + 16 licas
	assert.Len(t, auditor.events, 25)

	assert.Equal(t, 1, metrics.Runs["succeeded"])
	assert.Equal(t, 4, metrics.Created[models.EventLineItem])
	assert.Equal(t, []int{4}, metrics.BucketsPerRun)
}

func TestRun_ReusesTargetingAcrossRuns(t *testing.T) {
	mem := gam.NewMemory("root-1")
	mem.AddUser("ops", "ops@example.com")
	runner, _ := newTestRunner(t, mem)

	_, err := runner.Run(context.Background(), displayRequest(t))
	require.NoError(t, err)
	keysCreated := mem.Calls["createCustomTargetingKeys"]
	valuesCreated := mem.Calls["createCustomTargetingValues"]

	req := displayRequest(t)
	req.RunID = ""
	req.OrderName = "OW_HB_2"
	_, err = runner.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, keysCreated, mem.Calls["createCustomTargetingKeys"])
	assert.Equal(t, valuesCreated, mem.Calls["createCustomTargetingValues"])
}

func TestRun_OrderSpillOver(t *testing.T) {
	mem := gam.NewMemory("root-1")
	mem.AddUser("ops", "ops@example.com")
	runner, _ := newTestRunner(t, mem, WithOrderLimit(2))

	req := displayRequest(t)
	req.Ranges = mustRanges(t, [3]string{"1.00", "1.04", "0.01"})
	res, err := runner.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.Orders, 3)
	assert.Equal(t, "OW_HB", res.Orders[0].Name)
	assert.Equal(t, "2_OW_HB", res.Orders[1].Name)
	assert.Equal(t, "3_OW_HB", res.Orders[2].Name)
	assert.Len(t, res.Orders[0].LineItemIDs, 2)
	assert.Len(t, res.Orders[2].LineItemIDs, 1)

	// a second run fills the partly used third order before opening a fourth
	req.RunID = ""
	req.Ranges = mustRanges(t, [3]string{"2.00", "2.01", "0.01"})
	res, err = runner.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)
	assert.Equal(t, "3_OW_HB", res.Orders[0].Name)
	assert.Equal(t, "4_OW_HB", res.Orders[1].Name)
}

func TestRun_PlacementsAndCurrency(t *testing.T) {
	mem := gam.NewMemory("root-1")
	mem.AddUser("ops", "ops@example.com")
	p := mem.AddPlacement("homepage")
	runner, _ := newTestRunner(t, mem)

	req := displayRequest(t)
	req.PlacementNames = []string{"homepage", "missing"}
	req.Ranges = mustRanges(t, [3]string{"1.00", "1.00", "0.01"})
	req.ExchangeRate = true
	req.TargetCurrency = "INR"
	res, err := runner.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "INR", res.Currency)
	li := res.LineItems[0]
	assert.Equal(t, "INR", li.CostPerUnit.CurrencyCode)
	assert.Equal(t, []int64{p.ID}, li.Targeting.InventoryTargeting.TargetedPlacementIDs)
	assert.Empty(t, li.Targeting.InventoryTargeting.TargetedAdUnits)

	rate, ok := pricing.ExchangeRate("USD", "INR")
	require.True(t, ok)
	want := decimal.NewFromInt(1).Mul(rate).Round(2).StringFixed(2)
	assert.Equal(t, want, res.Buckets[0].StartRange)
}

func TestRun_AdPod(t *testing.T) {
	mem := gam.NewMemory("root-1")
	mem.AddUser("ops", "ops@example.com")
	runner, _ := newTestRunner(t, mem)

	req := Request{
		RunID:           "abcdef0123456789",
		OrderName:       "POD",
		AdvertiserName:  "PubMatic",
		TraffickerEmail: "ops@example.com",
		SetupType:       models.SetupAdPod,
		Sizes:           []models.Size{{Width: 640, Height: 480}},
		Ranges:          mustRanges(t, [3]string{"1.00", "1.01", "0.01"}),
		Durations:       []int{10, 15},
		Slots:           []int{1, 2},
		VideoPosition:   models.VideoPositionMidroll,
	}
	res, err := runner.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.Orders, 2)
	assert.Equal(t, "s1_1_POD", res.Orders[0].Name)
	assert.Equal(t, "s2_1_POD", res.Orders[1].Name)
	assert.Len(t, res.LineItems, 4)

	li := res.LineItems[0]
	require.Len(t, li.CreativePlaceholders, 2)
	assert.Equal(t, "s1_10second_ad", li.CreativePlaceholders[0].TargetingName)
	require.Len(t, li.CreativeTargetings, 2)
	assert.Equal(t, "VIDEO_PLAYER", li.EnvironmentType)

	require.Len(t, res.Creatives, 4)
	assert.Equal(t, "s1_640x480_10SecondAd_abcdef01", res.Creatives[0].Name)
	assert.Equal(t, "s2_640x480_15SecondAd_abcdef01", res.Creatives[3].Name)

	// 2 line items x 2 creatives per slot
	assert.Equal(t, 8, res.LICAs)
	assert.Equal(t, "s1_10second_ad", mem.LICAs[0].TargetingName)
	assert.NotZero(t, mem.LICAs[0].CreativeSetID)
}

func TestRun_Native(t *testing.T) {
	mem := gam.NewMemory("root-1")
	mem.AddUser("ops", "ops@example.com")
	runner, _ := newTestRunner(t, mem)

	req := displayRequest(t)
	req.SetupType = models.SetupNative
	req.Sizes = nil
	req.TemplateIDs = []int64{9001}
	req.LineItemPrefix = "nat"
	req.NumCreatives = 1
	req.Ranges = mustRanges(t, [3]string{"1.00", "1.00", "0.01"})
	res, err := runner.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.Creatives, 1)
	assert.Equal(t, "nat_9001_native", res.Creatives[0].Name)
	assert.Equal(t, "nat_Top Bid: HB $1.00", res.LineItems[0].Name)
	require.Len(t, mem.LICAs, 1)
	assert.Equal(t, []gam.Size{{Width: 1, Height: 1}}, mem.LICAs[0].Sizes)
}

func TestRun_Failures(t *testing.T) {
	t.Run("invalid request", func(t *testing.T) {
		mem := gam.NewMemory("root-1")
		ledger := &fakeLedger{}
		runner, metrics := newTestRunner(t, mem, WithLedger(ledger))

		req := displayRequest(t)
		req.Sizes = nil
		_, err := runner.Run(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Equal(t, 1, metrics.Runs["failed"])
		require.Len(t, ledger.finished, 1)
		assert.Equal(t, models.RunFailed, ledger.finished[0].Status)
		assert.NotEmpty(t, ledger.finished[0].Error)
	})

	t.Run("no ranges", func(t *testing.T) {
		runner, _ := newTestRunner(t, gam.NewMemory("root-1"))
		req := displayRequest(t)
		req.Ranges = nil
		_, err := runner.Run(context.Background(), req)
		assert.ErrorIs(t, err, pricing.ErrNoRanges)
	})

	t.Run("missing trafficker", func(t *testing.T) {
		runner, _ := newTestRunner(t, gam.NewMemory("root-1"))
		_, err := runner.Run(context.Background(), displayRequest(t))
		assert.ErrorIs(t, err, ErrTraffickerNotFound)
	})

	t.Run("remote failure aborts the batch", func(t *testing.T) {
		mem := gam.NewMemory("root-1")
		mem.AddUser("ops", "ops@example.com")
		boom := errors.New("boom")
		mem.FailOn = func(method string) error {
			if method == "createCustomTargetingValues" {
				return boom
			}
			return nil
		}
		runner, _ := newTestRunner(t, mem)
		_, err := runner.Run(context.Background(), displayRequest(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		var remote *gam.RemoteError
		assert.True(t, errors.As(err, &remote))
		assert.Empty(t, mem.LineItems)
	})

	t.Run("line item count mismatch", func(t *testing.T) {
		mem := gam.NewMemory("root-1")
		mem.AddUser("ops", "ops@example.com")
		ledger := &fakeLedger{}
		runner := NewRunner(&extraLineItemServer{Memory: mem}, macros.NewServiceForTesting(zaptest.NewLogger(t)),
			zap.NewNop(), observability.NewMockMetricsRegistry(), WithLedger(ledger))

		_, err := runner.Run(context.Background(), displayRequest(t))
		var remote *gam.RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, "createLineItems", remote.Method)
		assert.Empty(t, ledger.items)
	})

	t.Run("ledger failures do not fail the run", func(t *testing.T) {
		mem := gam.NewMemory("root-1")
		mem.AddUser("ops", "ops@example.com")
		ledger := &fakeLedger{err: errors.New("db down")}
		runner, metrics := newTestRunner(t, mem, WithLedger(ledger))
		_, err := runner.Run(context.Background(), displayRequest(t))
		require.NoError(t, err)
		assert.Equal(t, 3, metrics.PersistErrors["ledger"])
	})
}

// extraLineItemServer answers createLineItems with one more item than it
// was sent.
type extraLineItemServer struct {
	*gam.Memory
}

func (s *extraLineItemServer) CreateLineItems(ctx context.Context, items []gam.LineItem) ([]gam.LineItem, error) {
	created, err := s.Memory.CreateLineItems(ctx, items)
	if err != nil || len(created) == 0 {
		return created, err
	}
	return append(created, created[0]), nil
}

func TestPlan(t *testing.T) {
	req := displayRequest(t)
	req.PlacementNames = []string{"homepage"}
	names := macros.NewServiceForTesting(zaptest.NewLogger(t))
	metrics := observability.NewMockMetricsRegistry()

	res, err := Plan(context.Background(), req, names, zap.NewNop(), metrics)
	require.NoError(t, err)
	assert.Equal(t, models.RunPlanned, res.Status)
	assert.Len(t, res.LineItems, 4)
	assert.NotEmpty(t, res.LineItems[0].Targeting.InventoryTargeting.TargetedPlacementIDs)
	assert.Equal(t, 1, metrics.Runs["planned"])
}

func TestOrderName(t *testing.T) {
	assert.Equal(t, "HB", OrderName("HB", "", 1))
	assert.Equal(t, "2_HB", OrderName("HB", "", 2))
	assert.Equal(t, "s1_1_HB", OrderName("HB", "s1", 1))
	assert.Equal(t, "s3_2_HB", OrderName("HB", "s3", 2))
}
