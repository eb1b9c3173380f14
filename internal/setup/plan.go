package setup

import (
	"context"

	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/macros"
	"github.com/patrickwarner/openwrap-setup/internal/observability"
)

// PlanRootAdUnit is the root ad unit id reported by the planning server.
const PlanRootAdUnit = "plan-root"

// Plan runs req against an in-memory ad server and returns what a real run
// would create. Ids in the result are local to the plan.
func Plan(ctx context.Context, req Request, names *macros.Service, logger *zap.Logger, metrics observability.MetricsRegistry) (*Result, error) {
	mem := gam.NewMemory(PlanRootAdUnit)
	if req.TraffickerEmail != "" {
		mem.AddUser("planner", req.TraffickerEmail)
	}
	for _, p := range req.PlacementNames {
		mem.AddPlacement(p)
	}
	return NewRunner(mem, names, logger.Named("plan"), metrics, WithDryRun()).Run(ctx, req)
}
