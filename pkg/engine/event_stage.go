package engine

import (
	"context"

	"github.com/mimir-aip/popsim/pkg/events"
)

// EventStage evaluates scheduled events against the current step and
// applies those whose triggers fire (spec §4.5). Per-event effect
// failures are reported through the context, not returned, so one bad
// event cannot halt the run.
type EventStage struct {
	Processor      *events.Processor
	Parallel       bool
	MaxParallelism int
}

func (s *EventStage) Name() string { return "EventStage" }

func (s *EventStage) ShouldExecute(ctx *SimulationContext) bool {
	return s.Processor != nil && len(s.Processor.Events) > 0
}

func (s *EventStage) Execute(ctx context.Context, simCtx *SimulationContext) error {
	return s.Processor.RunStep(ctx, simCtx, simCtx.World, s.Parallel, s.MaxParallelism, func(err error) {
		simCtx.ReportError(err)
	})
}
