package targeting

import (
	"context"
	"fmt"
	"strconv"

	"github.com/patrickwarner/openwrap-setup/internal/models"
)

// Generator builds one targeting tree per price bucket.
type Generator struct {
	resolver *Resolver
}

// NewGenerator returns a generator resolving ids through r.
func NewGenerator(r *Resolver) *Generator {
	return &Generator{resolver: r}
}

// Generate returns a tree per bucket, in bucket order. Any resolution
// failure aborts the whole batch.
func (g *Generator) Generate(ctx context.Context, buckets []models.PriceBucket, platform, bidderCode string) ([]models.TargetingTree, error) {
	trees := make([]models.TargetingTree, 0, len(buckets))
	for _, b := range buckets {
		t, err := g.ForBucket(ctx, b, platform, bidderCode)
		if err != nil {
			return nil, fmt.Errorf("bucket %s: %w", b.StartRange, err)
		}
		trees = append(trees, t)
	}
	return trees, nil
}

// ForBucket builds price AND platform AND boost, plus bidder when
// bidderCode is set.
func (g *Generator) ForBucket(ctx context.Context, b models.PriceBucket, platform, bidderCode string) (models.TargetingTree, error) {
	tree := models.NewTargetingTree()

	match := models.MatchExact
	if b.IsCatchAll {
		match = models.MatchPrefix
	}
	prices := b.PwtecpValues
	if len(prices) == 0 {
		prices = []string{b.StartRange}
	}
	if err := g.add(ctx, &tree, models.KeyPrice, match, prices...); err != nil {
		return models.TargetingTree{}, err
	}
	if err := g.add(ctx, &tree, models.KeyPlatform, models.MatchExact, platform); err != nil {
		return models.TargetingTree{}, err
	}
	if err := g.add(ctx, &tree, models.KeyBoost, models.MatchExact, models.BoostValue); err != nil {
		return models.TargetingTree{}, err
	}
	if bidderCode != "" {
		if err := g.add(ctx, &tree, models.KeyBidder, models.MatchExact, bidderCode); err != nil {
			return models.TargetingTree{}, err
		}
	}
	return tree, nil
}

// CreativeTargeting returns the tree scoping an ADPOD creative slot to one
// ad duration: {slot}_pwtdur IS {duration}.
func (g *Generator) CreativeTargeting(ctx context.Context, slot string, duration int) (models.TargetingTree, error) {
	tree := models.NewTargetingTree()
	if err := g.add(ctx, &tree, models.DurationKey(slot), models.MatchExact, strconv.Itoa(duration)); err != nil {
		return models.TargetingTree{}, err
	}
	return tree, nil
}

// DurationTargeting resolves CreativeTargeting for every duration.
func (g *Generator) DurationTargeting(ctx context.Context, slot string, durations []int) (map[int]models.TargetingTree, error) {
	out := make(map[int]models.TargetingTree, len(durations))
	for _, d := range durations {
		t, err := g.CreativeTargeting(ctx, slot, d)
		if err != nil {
			return nil, err
		}
		out[d] = t
	}
	return out, nil
}

func (g *Generator) add(ctx context.Context, tree *models.TargetingTree, key string, match models.MatchType, values ...string) error {
	keyID, err := g.resolver.KeyID(ctx, key)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := g.resolver.ValueID(ctx, key, v, match)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	tree.Add(keyID, ids...)
	return nil
}
