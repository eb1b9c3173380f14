package setup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/models"
)

// DefaultOrderLimit is the most line items one order may hold.
const DefaultOrderLimit = 450

// OrderName returns the nth order of a family. The first order of a plain
// family keeps the base name; later ones are "{n}_{base}". ADPOD families
// are always "{slot}_{n}_{base}".
func OrderName(base, slot string, n int) string {
	if slot != "" {
		return fmt.Sprintf("%s_%d_%s", slot, n, base)
	}
	if n <= 1 {
		return base
	}
	return fmt.Sprintf("%d_%s", n, base)
}

// allocation assigns buckets[From:To] to Order.
type allocation struct {
	Order gam.Order
	From  int
	To    int
}

// allocate spreads total line items across the orders of one family,
// filling existing orders up to the limit before opening the next.
func (r *Runner) allocate(ctx context.Context, st *runState, slot string, total int) ([]allocation, error) {
	var out []allocation
	start := 0
	for n := 1; start < total; n++ {
		name := OrderName(st.req.OrderName, slot, n)
		order, existed, err := r.getOrCreateOrder(ctx, st, name)
		if err != nil {
			return nil, err
		}
		used := 0
		if existed {
			used, err = r.server.CountLineItems(ctx, order.ID)
			if err != nil {
				return nil, fmt.Errorf("count line items of order %s: %w", name, err)
			}
		}
		free := r.orderLimit - used
		if free <= 0 {
			st.logger.Info("order full, moving to next",
				zap.String("order_name", name), zap.Int("line_items", used))
			continue
		}
		end := min(start+free, total)
		out = append(out, allocation{Order: *order, From: start, To: end})
		start = end
	}
	return out, nil
}

func (r *Runner) getOrCreateOrder(ctx context.Context, st *runState, name string) (*gam.Order, bool, error) {
	order, err := r.server.FindOrder(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("find order %s: %w", name, err)
	}
	if order != nil {
		st.logger.Info("using existing order", zap.String("order_name", name), zap.Int64("order_id", order.ID))
		return order, true, nil
	}

	trafficker, err := r.trafficker(ctx, st)
	if err != nil {
		return nil, false, err
	}
	order, err = r.server.CreateOrder(ctx, gam.Order{
		Name:         name,
		AdvertiserID: st.advertiser.ID,
		TraffickerID: trafficker,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create order %s: %w", name, err)
	}
	r.metrics.AddObjectsCreated(models.EventOrder, 1)
	st.event(models.EventOrder, order.ID, 0, order.Name)
	st.logger.Info("created order", zap.String("order_name", name), zap.Int64("order_id", order.ID))
	return order, false, nil
}

func (r *Runner) trafficker(ctx context.Context, st *runState) (int64, error) {
	if st.traffickerID != 0 {
		return st.traffickerID, nil
	}
	u, err := r.server.FindUserByEmail(ctx, st.req.TraffickerEmail)
	if err != nil {
		return 0, fmt.Errorf("find trafficker: %w", err)
	}
	if u == nil {
		return 0, fmt.Errorf("%w: %q", ErrTraffickerNotFound, st.req.TraffickerEmail)
	}
	st.traffickerID = u.ID
	return u.ID, nil
}

func (r *Runner) advertiser(ctx context.Context, st *runState) error {
	name := st.req.AdvertiserName
	c, err := r.server.FindAdvertiser(ctx, name)
	if err != nil {
		return fmt.Errorf("find advertiser %s: %w", name, err)
	}
	if c == nil {
		c, err = r.server.CreateAdvertiser(ctx, name)
		if err != nil {
			return fmt.Errorf("create advertiser %s: %w", name, err)
		}
		st.logger.Info("created advertiser", zap.String("advertiser", name), zap.Int64("advertiser_id", c.ID))
	}
	st.advertiser = c
	return nil
}

// inventory resolves placement names, falling back to the network root ad
// unit when none resolve.
func (r *Runner) inventory(ctx context.Context, st *runState) error {
	if len(st.req.PlacementNames) > 0 {
		ps, err := r.server.FindPlacements(ctx, st.req.PlacementNames)
		if err != nil {
			return fmt.Errorf("find placements: %w", err)
		}
		for _, p := range ps {
			st.placementIDs = append(st.placementIDs, p.ID)
		}
		if len(ps) < len(st.req.PlacementNames) {
			st.logger.Warn("some placements were not found",
				zap.Strings("requested", st.req.PlacementNames), zap.Int("found", len(ps)))
		}
	}
	if len(st.placementIDs) > 0 {
		return nil
	}
	n, err := r.server.CurrentNetwork(ctx)
	if err != nil {
		return fmt.Errorf("get current network: %w", err)
	}
	st.adUnitIDs = []string{n.EffectiveRootAdUnitID}
	st.logger.Info("targeting run of network", zap.String("root_ad_unit", n.EffectiveRootAdUnitID))
	return nil
}

func (st *runState) event(kind string, id, parent int64, name string) {
	st.events = append(st.events, models.SetupEvent{
		RunID:     st.runID,
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		ObjectID:  id,
		ParentID:  parent,
		Name:      name,
		SetupType: st.req.SetupType,
	})
}
