package targeting

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/models"
)

func bucket(start string, values ...string) models.PriceBucket {
	return models.PriceBucket{StartRange: start, Granularity: "0.01", PwtecpValues: values}
}

func TestGenerator_ThreeCriteriaWithoutBidder(t *testing.T) {
	ctx := context.Background()
	mem := gam.NewMemory("root")
	r, _ := newTestResolver(t, mem)
	g := NewGenerator(r)

	trees, err := g.Generate(ctx, []models.PriceBucket{bucket("1.00", "1.00", "1.01")}, "DISPLAY", "")
	require.NoError(t, err)
	require.Len(t, trees, 1)

	tree := trees[0]
	assert.Equal(t, "AND", tree.LogicalOperator)
	require.Len(t, tree.Children, 3)

	wantKeys := []string{models.KeyPrice, models.KeyPlatform, models.KeyBoost}
	for i, k := range wantKeys {
		id, err := r.KeyID(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, id, tree.Children[i].KeyID, "child %d should be %s", i, k)
		assert.Equal(t, "IS", tree.Children[i].Operator)
	}
	assert.Len(t, tree.Children[0].ValueIDs, 2)
	assert.Len(t, tree.Children[1].ValueIDs, 1)
	assert.Len(t, tree.Children[2].ValueIDs, 1)
}

func TestGenerator_BidderIsFourthCriterion(t *testing.T) {
	ctx := context.Background()
	mem := gam.NewMemory("root")
	r, _ := newTestResolver(t, mem)
	g := NewGenerator(r)

	tree, err := g.ForBucket(ctx, bucket("2.00", "2.00"), "VIDEO", "pubmatic")
	require.NoError(t, err)
	require.Len(t, tree.Children, 4)

	bidderKey, err := r.KeyID(ctx, models.KeyBidder)
	require.NoError(t, err)
	pubmatic, err := r.ValueID(ctx, models.KeyBidder, "pubmatic", models.MatchExact)
	require.NoError(t, err)
	assert.Equal(t, bidderKey, tree.Children[3].KeyID)
	assert.Equal(t, []int64{pubmatic}, tree.Children[3].ValueIDs)
}

func TestGenerator_CatchAllUsesPrefix(t *testing.T) {
	ctx := context.Background()
	mem := gam.NewMemory("root")
	r, _ := newTestResolver(t, mem)
	g := NewGenerator(r)

	b := models.PriceBucket{StartRange: "5.00", EndRange: "7.00", Granularity: "-1", IsCatchAll: true, PwtecpValues: []string{"5.", "6.", "7."}}
	tree, err := g.ForBucket(ctx, b, "DISPLAY", "")
	require.NoError(t, err)
	assert.Len(t, tree.Children[0].ValueIDs, 3)

	priceKey, err := r.KeyID(ctx, models.KeyPrice)
	require.NoError(t, err)
	for _, v := range mem.Values(priceKey) {
		assert.Equal(t, "PREFIX", v.MatchType, "value %s", v.Name)
	}
}

func TestGenerator_EmptyCatchAllFallsBackToStart(t *testing.T) {
	ctx := context.Background()
	mem := gam.NewMemory("root")
	r, _ := newTestResolver(t, mem)
	g := NewGenerator(r)

	b := models.PriceBucket{StartRange: "5.10", EndRange: "5.90", Granularity: "-1", IsCatchAll: true}
	tree, err := g.ForBucket(ctx, b, "DISPLAY", "")
	require.NoError(t, err)
	require.Len(t, tree.Children[0].ValueIDs, 1)

	priceKey, _ := r.KeyID(ctx, models.KeyPrice)
	vals := mem.Values(priceKey)
	require.Len(t, vals, 1)
	assert.Equal(t, "5.10", vals[0].Name)
}

func TestGenerator_SharedValuesResolvedOnce(t *testing.T) {
	ctx := context.Background()
	mem := gam.NewMemory("root")
	r, _ := newTestResolver(t, mem)
	g := NewGenerator(r)

	buckets := []models.PriceBucket{bucket("1.00", "1.00"), bucket("1.01", "1.01"), bucket("1.02", "1.02")}
	trees, err := g.Generate(ctx, buckets, "DISPLAY", "")
	require.NoError(t, err)
	require.Len(t, trees, 3)

	// 3 prices + platform + boost
	assert.Equal(t, 5, mem.Calls["createCustomTargetingValues"])
	assert.Equal(t, 3, mem.Calls["createCustomTargetingKeys"])
	assert.Equal(t, trees[0].Children[1], trees[2].Children[1])
}

func TestGenerator_FailureAbortsBatch(t *testing.T) {
	mem := gam.NewMemory("root")
	calls := 0
	mem.FailOn = func(method string) error {
		if method == "createCustomTargetingValues" {
			calls++
			if calls > 4 {
				return errors.New("server unavailable")
			}
		}
		return nil
	}
	r, _ := newTestResolver(t, mem)
	g := NewGenerator(r)

	trees, err := g.Generate(context.Background(),
		[]models.PriceBucket{bucket("1.00", "1.00"), bucket("1.01", "1.01"), bucket("1.02", "1.02")}, "DISPLAY", "")
	assert.Nil(t, trees)
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, err.Error(), "bucket 1.02")
}

func TestGenerator_CreativeTargeting(t *testing.T) {
	ctx := context.Background()
	mem := gam.NewMemory("root")
	r, _ := newTestResolver(t, mem)
	g := NewGenerator(r)

	byDur, err := g.DurationTargeting(ctx, "s1", []int{10, 15})
	require.NoError(t, err)
	require.Len(t, byDur, 2)

	durKey, err := r.KeyID(ctx, "s1_pwtdur")
	require.NoError(t, err)
	assert.Equal(t, durKey, byDur[10].Children[0].KeyID)
	assert.NotEqual(t, byDur[10].Children[0].ValueIDs, byDur[15].Children[0].ValueIDs)

	v15, err := r.ValueID(ctx, "s1_pwtdur", "15", models.MatchExact)
	require.NoError(t, err)
	assert.Equal(t, []int64{v15}, byDur[15].Children[0].ValueIDs)
}
