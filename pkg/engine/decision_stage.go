package engine

import (
	"context"

	"github.com/mimir-aip/popsim/pkg/migration"
	"github.com/mimir-aip/popsim/pkg/worldmodel"
)

// DecisionStage computes the step's migration flows against the world
// state as observed at step start (spec §4.4), storing them in the
// context's Pending list for ExecutionStage to apply.
type DecisionStage struct {
	Migration      migration.Calculator
	MaxParallelism int
}

func (s *DecisionStage) Name() string { return "DecisionStage" }

func (s *DecisionStage) ShouldExecute(ctx *SimulationContext) bool {
	return ctx.World.Population() > 0
}

func (s *DecisionStage) Execute(ctx context.Context, simCtx *SimulationContext) error {
	onError := func(p *worldmodel.Person, err error) {
		simCtx.ReportError(&DecisionError{Cause: err})
	}
	flows, err := migration.CalculateAllMigrationFlows(ctx, simCtx.World, s.Migration, s.MaxParallelism, onError)
	if err != nil {
		return err
	}
	simCtx.Pending = flows
	return nil
}
