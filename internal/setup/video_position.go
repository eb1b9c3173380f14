package setup

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/lineitem"
	"github.com/patrickwarner/openwrap-setup/internal/models"
)

// PositionRequest selects the line items whose video position to change.
type PositionRequest struct {
	OrderName    string               `json:"order_name"`
	NameLike     string               `json:"name_like"`
	LineItemType models.LineItemType  `json:"line_item_type"`
	Position     models.VideoPosition `json:"position"`
}

// PositionResult reports the outcome for every selected line item.
type PositionResult struct {
	Updated []int64                           `json:"updated"`
	Skipped map[int64]lineitem.PositionChange `json:"skipped"`
}

// UpdateVideoPositions retargets the selected line items to req.Position.
// Line items already at the position or targeting several positions are
// skipped.
func (r *Runner) UpdateVideoPositions(ctx context.Context, req PositionRequest) (*PositionResult, error) {
	ctx, span := tracer.Start(ctx, "setup.UpdateVideoPositions",
		trace.WithAttributes(attribute.String("order.name", req.OrderName)))
	defer span.End()

	if req.Position == models.VideoPositionNone {
		return nil, fmt.Errorf("%w: video position is required", ErrInvalidRequest)
	}
	logger := r.logger.With(zap.String("order", req.OrderName), zap.String("position", string(req.Position)))

	order, err := r.server.FindOrder(ctx, req.OrderName)
	if err != nil {
		return nil, fmt.Errorf("find order %s: %w", req.OrderName, err)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %q not found", ErrInvalidRequest, req.OrderName)
	}

	items, err := r.server.FindLineItems(ctx, gam.LineItemFilter{
		OrderID:      order.ID,
		NameLike:     req.NameLike,
		LineItemType: string(req.LineItemType),
	})
	if err != nil {
		return nil, fmt.Errorf("find line items: %w", err)
	}

	res := &PositionResult{Skipped: map[int64]lineitem.PositionChange{}}
	var changed []gam.LineItem
	for i := range items {
		li := &items[i]
		switch c := lineitem.RetargetVideoPosition(li, req.Position); c {
		case lineitem.PositionAdded, lineitem.PositionRewritten:
			changed = append(changed, *li)
		default:
			res.Skipped[li.ID] = c
			logger.Info("skipping line item", zap.Int64("line_item_id", li.ID), zap.Stringer("reason", c))
		}
	}
	if len(changed) == 0 {
		logger.Info("no line items to update", zap.Int("selected", len(items)))
		return res, nil
	}

	updated, err := r.server.UpdateLineItems(ctx, changed)
	if err != nil {
		return nil, fmt.Errorf("update line items: %w", err)
	}
	for _, li := range updated {
		res.Updated = append(res.Updated, li.ID)
	}
	r.metrics.AddObjectsCreated(models.EventUpdate, len(updated))
	logger.Info("updated video positions", zap.Int("updated", len(updated)), zap.Int("skipped", len(res.Skipped)))
	return res, nil
}
