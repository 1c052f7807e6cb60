package engine

import (
	"context"

	"github.com/mimir-aip/popsim/pkg/worldmodel"
)

// ExecutionStage applies the migration flows DecisionStage computed,
// removing each person from its origin and inserting it into its
// destination as an atomic pair (spec §4.4'). Flows are applied in
// Pending order (already stable by person index), so the result is
// trivially equivalent to a serial application in DecisionStage's
// emission order.
type ExecutionStage struct {
	// HardCapacityEnforcement drops moves that would exceed a finite
	// destination capacity, in flow order, counting them as rejections
	// rather than applying them. The spec's default policy is soft
	// capacity (resistance only, no hard rejection).
	HardCapacityEnforcement bool

	Rejections int
}

func (s *ExecutionStage) Name() string { return "ExecutionStage" }

func (s *ExecutionStage) ShouldExecute(ctx *SimulationContext) bool {
	return len(ctx.Pending) > 0
}

func (s *ExecutionStage) Execute(ctx context.Context, simCtx *SimulationContext) error {
	before := snapshotPopulations(simCtx.World)

	for _, flow := range simCtx.Pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.HardCapacityEnforcement && flow.Destination.Capacity != nil && flow.Destination.Population() >= *flow.Destination.Capacity {
			s.Rejections++
			continue
		}

		if err := flow.Origin.Remove(flow.Person); err != nil {
			simCtx.ReportError(&ExecutionError{Cause: err})
			continue
		}
		if err := flow.Destination.Add(flow.Person); err != nil {
			// Best-effort restoration so the person is not left with no
			// residency at all; the move as a whole still counts as failed.
			_ = flow.Origin.Add(flow.Person)
			simCtx.ReportError(&ExecutionError{Cause: err})
			continue
		}
		simCtx.TotalPopulationChange++
	}

	simCtx.MaxCityPopulationChange = maxPopulationDelta(simCtx.World, before)
	return nil
}

func snapshotPopulations(world *worldmodel.World) map[*worldmodel.City]int {
	before := make(map[*worldmodel.City]int, len(world.Cities()))
	for _, c := range world.Cities() {
		before[c] = c.Population()
	}
	return before
}

func maxPopulationDelta(world *worldmodel.World, before map[*worldmodel.City]int) int {
	max := 0
	for _, c := range world.Cities() {
		diff := c.Population() - before[c]
		if diff < 0 {
			diff = -diff
		}
		if diff > max {
			max = diff
		}
	}
	return max
}
